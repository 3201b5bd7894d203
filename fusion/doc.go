// Package fusion merges dense and sparse result lists into one ranking.
//
// Each side is min-max normalized within the query's own result set and the
// two are combined linearly:
//
//	fused = alpha*normDense + (1-alpha)*normSparse
//
// A chunk missing from one side scores zero there. Ordering is a total order:
// fused score descending, then raw dense score descending, then chunk id
// ascending.
package fusion
