// Package biograph is a federated biomedical knowledge-graph query engine.
//
// Given a TRAPI query graph, the engine plans an ordered set of execution
// edges, dispatches each edge to downstream knowledge-provider APIs through
// a batch query handler, prunes the returned records against neighboring
// edge bindings, and assembles the surviving records into TRAPI results and
// an aggregate knowledge graph.
//
// The top-level packages are:
//
//   - trapi: TRAPI request/response wire types and request validation
//   - graph: query-graph model, validation, and category normalization
//   - record: the record exchanged with downstream APIs plus fingerprinting
//   - metakg: the catalog of (input-type, predicate, output-type) operations
//   - resolver: identifier resolution boundary with in-process memoization
//   - engine: the query-execution pipeline (edge manager, cache handler,
//     batch handler, results assembler, knowledge-graph builder)
//   - gateway: the HTTP surface exposing /v1/query, /health and /metrics
//
// Supporting packages live under pkg/ (worker pool, retry, TTL cache) with
// cross-cutting concerns in errors/, config/, metric/ and health/.
package biograph
