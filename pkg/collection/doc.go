// Package collection implements the document write pipeline: metadata
// stamping, processor-chain transformation, primary-map storage, secondary
// index coordination, and event publication for insert/update/remove.
//
// Filter evaluation and index maintenance are consumed, not implemented,
// here — IndexWriter and ReadOperations are the contracts WriteOperations
// depends on; a full query optimizer and spatial index live outside this
// package. A simple scanning ReadOperations is provided so the pipeline is
// directly exercisable without those layers.
package collection
