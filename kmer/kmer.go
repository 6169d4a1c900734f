/*
Package kmer provides canonical integer indexing for nucleotide bases and
fixed-length k-mers.

Nanopore pore models are tabulated per k-mer, so everything downstream of the
sequence axis (emission tables, skip bins, gap expectation vectors) is indexed
by the integer returned from Index. The encoding is positional base-4 with the
leftmost base as the most significant digit, which makes the index of "AAAAAA"
zero and the index of "TTTTTT" NumKmers-1. Bases outside {A,C,G,T} (in
practice, N) encode as 4 and push the index out of the valid range, which the
lookup tables treat as a sentinel rather than an error.
*/
package kmer

// Length is the k-mer length of the pore-model chemistry. The 6-mer models
// are the ones shipped with current nanopore chemistries.
const Length = 6

// BaseCount is the number of unambiguous nucleotides.
const BaseCount = 4

// NumKmers is the number of distinct unambiguous k-mers, BaseCount^Length.
const NumKmers = 4096

// BaseIndex returns the canonical index of a nucleotide. A, C, G, T map to
// 0 through 3. Anything else (N, lowercase, garbage) maps to 4, which pushes
// any k-mer containing it out of the valid index range.
func BaseIndex(base byte) int {
	switch base {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	default:
		return 4
	}
}

// Index returns the canonical integer index of a k-mer. The empty string
// returns NumKmers+1 as an out-of-range sentinel. K-mers containing
// ambiguous bases index past NumKmers-1 and are likewise treated as
// sentinels by the emission tables.
func Index(kmer string) int {
	if len(kmer) == 0 {
		return NumKmers + 1
	}
	for position := 0; position < len(kmer); position++ {
		if BaseIndex(kmer[position]) == BaseCount {
			return NumKmers + 1
		}
	}
	placeValue := NumKmers / BaseCount
	index := 0
	position := 0
	for placeValue > 1 {
		index += placeValue * BaseIndex(kmer[position])
		position++
		placeValue /= BaseCount
	}
	index += BaseIndex(kmer[len(kmer)-1])
	return index
}

// FromIndex reconstructs the k-mer string for a valid index. It is the
// inverse of Index over [0, NumKmers). Out-of-range indices panic, since a
// bad index here is a program bug rather than bad input data.
func FromIndex(index int) string {
	if index < 0 || index >= NumKmers {
		panic("kmer: index out of range")
	}
	const bases = "ACGT"
	buffer := make([]byte, Length)
	for position := Length - 1; position >= 0; position-- {
		buffer[position] = bases[index%BaseCount]
		index /= BaseCount
	}
	return string(buffer)
}
