// Package tokenizer implements the id vocabulary used for decoder tokens:
// reserved ids, one contiguous range per event type, difficulty classes,
// style classes and the two unknown placeholders used for dropout.
package tokenizer
