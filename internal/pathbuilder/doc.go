// Package pathbuilder turns a resolved book profile into a destination
// folder inside the library.
//
// Build is a pure function of the profile, the naming template and a
// snapshot of the folders that already exist near the target. When the
// natural target is occupied by a different recording the builder first
// tries a narrator suffix and then "[Version B]", "[Version C]" and so on,
// reusing any candidate that already holds the same recording so repeated
// runs converge on the same answer.
package pathbuilder
