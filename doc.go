// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package anoncreds implements Camenisch-Lysyanskaya attribute-based credentials:
// blinded issuance of CL signatures over attribute blocks, selective disclosure
// proofs with inequality predicates over hidden attributes, and revocation through
// an RSA-B accumulator. See anoncreds_test.go on how to use the library.
package anoncreds
