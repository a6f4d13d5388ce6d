// Package errors provides the error taxonomy shared by the gateway
// components. Every failure that reaches the HTTP layer is one of three
// kinds (validation, embedding, index) and maps to a fixed status code.
//
// Errors are created with the Validation, Embedding and Index constructors,
// wrapped with %w as they travel up, and inspected with errors.As through
// the IsValidation, IsEmbedding and IsIndex predicates.
package errors
