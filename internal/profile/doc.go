// Package profile holds the consensus model for book identification.
//
// Every signal about a book (a folder name, an ID3 tag, a transcript phrase,
// a provider response) becomes an Observation of one Field from one Source.
// Engine.Merge folds observations into a BookProfile: values are clustered by
// normalized equality or similarity, the winning cluster resolves the field,
// and each field carries a confidence derived from source weight, agreement
// between independent sources and the number of conflicting clusters. The
// overall profile confidence is the field-weighted mean of those confidences
// and is never assigned directly.
//
// Locked fields (set by a user) keep their value at confidence 100 and are
// never recomputed.
package profile
