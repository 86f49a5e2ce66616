// Package safety decides whether a proposed folder move may run.
//
// The Gate builds the destination with the path builder, inspects the
// filesystem around it and classifies the move as auto_apply,
// pending_approval or rejected. The first matching rule wins and the gate
// never writes to disk.
package safety
