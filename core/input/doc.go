// Package input normalizes the market time series and the scalar parameter
// records into the read-only structure consumed by the model builder.
package input
