package cli

// Command descriptions
const (
	MsgRootShort = "Panduza bench toolkit"
	MsgRootLong  = `pza runs the pieces a Panduza bench needs around its devices: an embedded
MQTT broker, a client to watch and drive topics, and the shared
configuration file in ~/.panduza.`

	MsgVersionShort    = "Print version information"
	MsgConfigShort     = "Inspect and create the configuration file"
	MsgConfigInitShort = "Write the annotated default configuration"
	MsgConfigShowShort = "Print the effective configuration"
	MsgConfigPathShort = "Print the configuration file location"
	MsgBrokerShort     = "Run the embedded MQTT broker"
	MsgListenShort     = "Print messages published on topics"
	MsgPublishShort    = "Publish one message"
)

// Output formats
const (
	MsgVersionFormat = "pza version %s\n"
	MsgCommitFormat  = "Commit: %s\n"
	MsgBuiltFormat   = "Built:  %s\n"
	MsgWroteConfig   = "Wrote %s\n"
	MsgMessageFormat = "%s %s\n"
	MsgBrokerAddr    = "%s listening on %s\n"
)

// Errors
const (
	MsgErrNoCommand     = "no command specified"
	MsgErrConfigExists  = "%s already exists, use --force to overwrite"
	MsgErrInvalidShell  = "unsupported shell %q"
	MsgErrWorkersNeeded = "--workers must be at least 1"
)

// Flag descriptions
const (
	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig  = "Configuration file (default ~/.panduza/config.json5)"
	MsgFlagForce   = "Overwrite an existing file"
	MsgFlagMeduse  = "Use the Meduse platform listener layout"
	MsgFlagWatch   = "Reload the logging section when the configuration file changes"
	MsgFlagWorkers = "Run message handlers on a pool of this many workers"
	MsgFlagPrefix  = "Prepend the configured topic prefix"
	MsgFlagTimeout = "Give up after this long"
)
