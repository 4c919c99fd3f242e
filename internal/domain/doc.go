// Package domain models water-consumption patterns and the synthetic meter
// readings sampled from them.
//
// # Pattern File
//
// A pattern file is JSON produced by an offline analysis of real meter data.
// Meters are grouped into clusters; each meter is assigned one cluster by
// drawing from "cluster_probabilities", then every reading for that meter is
// sampled from the cluster's pattern:
//
//	{
//	  "cluster_probabilities": {"0": 0.7, "1": 0.3},
//	  "patterns": {
//	    "0": {
//	      "transitions": {"0": {"0": 0.8, "1": 0.2}, "1": {"0": 0.3, "1": 0.7}},
//	      "gmm": {"means": [2.1, 9.4], "weights": [0.8, 0.2], "covars": [0.6, 4.0]},
//	      "temporal_patterns": {
//	        "hourly_patterns": {"7": {"mean": 1.6}},
//	        "weekly_patterns": {"5": {"mean": 1.2}}
//	      },
//	      "basic_stats": {"mean": 3.2, "std": 2.4, "min": 0, "max": 25},
//	      "common_value": 1.5,
//	      "common_value_probability": 0.2,
//	      "daily_sequence": {"peak_times": [7, 8, 19], "zero_periods": [1, 2, 3]}
//	    }
//	  }
//	}
//
// Only "transitions" and "gmm" are required. Everything else refines the
// sampling and may be omitted.
//
// # Sampling
//
// Each interval first advances a two-state Markov chain (zero / non-zero
// consumption) using "transitions". A missing row falls back to an even split.
// Hours listed in "daily_sequence" bias the chain: a zero draw during a peak
// hour is re-drawn with probability 0.7, and a zero hour forces zero
// consumption with probability 0.8.
//
// A non-zero value is drawn from the Gaussian mixture, scaled by the mean of
// the hourly and weekly factors (1.0 when absent), perturbed by N(0, 0.1),
// clamped into [min, max] of "basic_stats" when max > min, occasionally
// snapped to "common_value", floored at zero and rounded to two decimals.
//
// Weekly factors are keyed Monday = "0" through Sunday = "6".
//
// # Meter Variation
//
// Meters in the same cluster are not identical: mixture means and the common
// value are scaled per meter by 1 + N(0, variation).
//
// # Determinism
//
// Every meter samples from its own PCG stream seeded with (seed, meterID), so
// a fixed seed reproduces the same readings regardless of the order in which
// meters are generated.
package domain
