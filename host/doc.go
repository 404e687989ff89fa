// Package host models the binding surface of the application being modified.
//
// The real host exposes its functions only through runtime patching. This
// package reduces that capability to what the override core needs: a table of
// named functions, each with an instruction program, and the ability to attach
// prefix, postfix and rewrite hooks to a function and detach them again.
//
// # Calling convention
//
// Invoke runs, in order:
//
//	prefixes   (priority descending, then bind order; a prefix returning false skips the body)
//	program    (the original instructions after every rewrite rule has been applied)
//	postfixes  (priority descending, then bind order; always run)
//
// # Atomicity
//
// Each function keeps its effective hook chain behind an atomic pointer. Bind
// and Unbind build a complete new chain and swap it in one step, so a concurrent
// Invoke observes either the chain before the change or the chain after it.
//
// # Modules
//
// LoadedModules lists the optional subsystems currently present, which the
// environment probe reads before binding conditional overrides.
package host
