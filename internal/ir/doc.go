// Package ir provides the value types shared by every joinopt package:
// triple patterns, query specs, statistics specs, and their canonical
// encodings.
//
// This package contains type definitions and identity functions only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Identity hashes never see floats. Selectivities are encoded as their
//     shortest decimal string before hashing.
//   - Pattern ids are uint64 and hashed as decimal strings, since they may
//     exceed the int64 range of canonical JSON integers.
//   - All JSON tags use snake_case.
package ir
