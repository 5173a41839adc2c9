// Package progress turns raw per-process percentages into the values callers
// see. It maps phase-local progress into a stage range, picks the visible stage
// value from a project's progress map, throttles tool callbacks, and fans
// recorded values out to the store and an optional Redis mirror.
package progress
