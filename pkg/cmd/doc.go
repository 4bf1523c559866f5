// Package cmd provides the strata command line interface.
//
// Commands are constructed through fx so every command receives its
// dependencies (config, version info) via injection rather than globals.
// Each command constructor is annotated into the "commands" group and
// collected by Run, which assembles the urfave/cli application and executes
// it inside an fx start hook.
package cmd
