// Package ingest moves temperature CSV files from a landing directory into
// Postgres.
//
// Each file is fingerprinted, checked against the run ledger, header
// validated, bulk-copied into a staging table, transformed by a database
// routine and finally moved to an archive or error directory. Storage is
// reached through the Ledger, Stager and Transformer interfaces so the
// pipeline can be exercised without a database; internal/store provides the
// Postgres implementations.
//
// Files are processed one at a time. A failure in one file is recorded and
// never stops the rest of the batch.
package ingest
