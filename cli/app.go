// Package cli contains the rgbd command line tool: listing devices and modes, reading
// synchronized pairs to disk, recording and intrinsics estimation.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"
	generalFlagConfig  = "config"

	deviceFlagURI = "uri"

	readFlagFrames      = "frames"
	readFlagOut         = "out"
	readFlagFormat      = "format"
	readFlagWidth       = "width"
	readFlagHeight      = "height"
	readFlagDepthFormat = "depth-format"
	readFlagColorFormat = "color-format"
	readFlagSeek        = "seek"
	readFlagTrace       = "trace"

	recordFlagMaxFPS = "max-fps"
)

var deviceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    generalFlagConfig,
		Aliases: []string{"c"},
		Usage:   "load acquisition settings from `FILE`",
	},
	&cli.StringFlag{
		Name:  deviceFlagURI,
		Usage: "open the device at `URI`, overriding the config; empty opens the first device found",
	},
	&cli.IntFlag{
		Name:  readFlagWidth,
		Usage: "preferred frame width in pixels",
	},
	&cli.IntFlag{
		Name:  readFlagHeight,
		Usage: "preferred frame height in pixels",
	},
	&cli.StringFlag{
		Name:  readFlagDepthFormat,
		Usage: "preferred depth pixel format",
	},
	&cli.StringFlag{
		Name:  readFlagColorFormat,
		Usage: "preferred color pixel format",
	},
}

func withDeviceFlags(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, deviceFlags...), flags...)
}

var app = &cli.App{
	Name:            "rgbd",
	Usage:           "acquire synchronized depth and color frames",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogFile,
			Usage: "also write logs to `FILE`, rotated by size",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "devices",
			Usage:  "list the devices every driver can see",
			Action: DevicesAction,
		},
		{
			Name:   "modes",
			Usage:  "list the depth and color video modes of a device",
			Flags:  withDeviceFlags(),
			Action: ModesAction,
		},
		{
			Name:  "read",
			Usage: "read synchronized pairs and optionally save them",
			Flags: withDeviceFlags(
				&cli.IntFlag{
					Name:  readFlagFrames,
					Usage: "number of pairs to read; recordings stop early at their end",
				},
				&cli.IntFlag{
					Name:  readFlagSeek,
					Usage: "start a recording at this frame",
				},
				&cli.StringFlag{
					Name:  readFlagOut,
					Usage: "write each pair into `DIR`",
				},
				&cli.BoolFlag{
					Name:  readFlagTrace,
					Usage: "log every pair read, whatever the log level",
				},
				&cli.StringFlag{
					Name:  readFlagFormat,
					Value: formatPNG,
					Usage: "image format of saved pairs: png, tiff, qoi or pretty",
				},
			),
			Action: ReadAction,
		},
		{
			Name:  "record",
			Usage: "record synchronized pairs into an .rgbd file",
			Flags: withDeviceFlags(
				&cli.IntFlag{
					Name:  readFlagFrames,
					Usage: "number of pairs to record; zero records until interrupted",
					Value: 100,
				},
				&cli.StringFlag{
					Name:     readFlagOut,
					Usage:    "write the recording to `FILE`",
					Required: true,
				},
				&cli.Float64Flag{
					Name:  recordFlagMaxFPS,
					Usage: "record at most this many pairs per second; zero records every pair",
				},
			),
			Action: RecordAction,
		},
		{
			Name:  "intrinsics",
			Usage: "estimate pinhole intrinsics of the depth camera from its field of view",
			Flags: withDeviceFlags(
				&cli.StringFlag{
					Name:  readFlagOut,
					Usage: "write the intrinsics as JSON to `FILE` instead of printing them",
				},
			),
			Action: IntrinsicsAction,
		},
		{
			Name:   "config-schema",
			Usage:  "print the JSON schema of config files",
			Action: ConfigSchemaAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
