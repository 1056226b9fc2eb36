// Package registry provides a generic, thread-safe registry of
// callbacks. Independent parts of a program register reactions against
// one data type, address them by a stable ID, and later run one of them
// (Execute) or all of them (ExecuteAll).
package registry
