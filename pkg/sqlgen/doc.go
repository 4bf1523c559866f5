// Package sqlgen generates CREATE/ALTER/DROP statement text from
// declarative table descriptors.
//
// The generators are pure functions over TableDescriptor and
// ColumnDescriptor values; they know nothing about host-language models or
// reflection, so the migration engine can consume their output exactly like
// hand-written SQL. Descriptors are typically loaded from a YAML schema
// file by the "strata make" command.
package sqlgen
