// Package corels finds optimal short decision lists by branch and bound.
//
// A decision list is an ordered sequence of "if rule then predict" clauses
// ending in a default prediction. Given a binary-labeled dataset and a set of
// candidate rules (each a bit vector of the samples it captures), Search
// enumerates rule prefixes breadth first by length, bounding every prefix by
// the accuracy it could reach if all its uncaptured samples were classified
// correctly, and returns the most accurate list of at most the configured
// length.
//
// # Quick Start
//
//	ds, _ := dataset.Load("compas.label", "compas.out")
//	res, _ := corels.Search(ctx, ds,
//	    corels.WithMaxPrefixLength(3),
//	    corels.WithGarbageCollection(corels.GCRuleSet),
//	)
//	fmt.Println(res.Accuracy)
//	fmt.Println(res.Rules)
//
// # Pruning
//
// Extensions whose new rule captures no remaining sample are dropped, as are
// extensions whose upper bound does not exceed the best accuracy found so far.
// A prefix whose bound fell below that accuracy, or whose accuracy already
// equals its bound, is not expanded further. Permutations of the same rules
// leave the same samples uncaptured; garbage collection keeps one of them, the
// one with more correctly classified captured samples.
//
// # Persistence
//
// WithStore saves the cache of a run as a tab-separated dump, optionally
// compressed, next to a JSON manifest, in any blobstore.BlobStore (local
// directory, S3, MinIO). WithResume continues a saved run at its next layer.
// WithLedger shares the best list found for a dataset across runs.
//
// # Regularized Objective
//
// Search maximizes accuracy. A regularized variant scores a list as its
// accuracy minus a constant c per clause; supporting it means replacing the
// accuracy comparisons of the evaluator and the dead and stunted prefix tests
// with the penalized values, and subtracting c times the length from the upper
// bound. It is not implemented.
package corels
