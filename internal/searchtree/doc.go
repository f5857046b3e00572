// Package searchtree implements the node arena behind the MCTS join-order
// search.
//
// Every node records a prefix of placed pattern indices (Order) and the
// indices still to place (Remaining). For every node in a tree the two are
// disjoint and together cover the full index set.
//
// # Ownership
//
// Nodes live in a Tree and are addressed by NodeID. Each node owns its
// Children: releasing a node releases its whole subtree. Parent is a
// non-owning back-reference used only to walk upward; Release never
// follows it.
//
// # Allocation
//
// A Tree has a node budget. NewNode fails with ErrAllocation once the
// budget is exhausted, so a caller can abandon a search cleanly instead of
// running out of memory mid-iteration.
package searchtree
