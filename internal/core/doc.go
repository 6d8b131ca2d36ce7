// Package core provides the business logic for parts-list imports.
//
// A PLM tool exports a parts list as CSV or Excel. The file is attached to an
// import request, and two imports can run against it:
//
//   - [Service.ImportItems] creates one inventory item per row.
//   - [Service.ImportBOMTree] rebuilds the multi-level BOM described by the
//     rows' structure levels, stores it as a BOM tree, submits it, and
//     derives a BOM from it.
//
// The package is independent of any transport or store; persistence is
// reached through [Catalog], [TreeStore] and [RequestStore], and file rows
// through [RowSource].
//
// # Rows
//
// Headers are scrubbed and mapped to canonical fields with an alias table
// ([BuildHeaderMap]), so "Number", "Item Code" and "code" all land in
// [FieldItemCode]. Quantity cells may carry a unit ("5 pcs"); see [ParseQty].
//
// # Tree reconstruction
//
// The root is the first row at the smallest structure level. Every later row
// attaches to the nearest preceding row with a smaller level that was
// actually stored; see [TreeBuilder]. Rows that cannot be placed are skipped
// and listed in the import log; they never abort the import.
//
// # Error Handling
//
// Abort-class errors (missing columns, missing root item, missing company
// defaults) stop an import before anything is written. Everything else is a
// per-row outcome. [MapError] turns any error into a user message with a
// support code:
//
//   - REQ001, FILE001-FILE005: request and file errors
//   - VAL004, VAL007: column and row errors
//   - BOM001, CFG001-CFG002: tree preconditions
//   - DB001-DB007, IMP002-IMP005: store and run errors
package core
