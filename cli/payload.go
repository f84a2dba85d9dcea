package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"proxsense/datatype"
	"proxsense/payload"
)

// PayloadInfo describes a sonar frame.
type PayloadInfo struct {
	Identifier int32  `json:"identifier"`
	ShortName  string `json:"short_name"`
	Length     int    `json:"length"`
	Hex        string `json:"hex"`
}

// NewPayloadCommand creates the payload command.
func NewPayloadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payload [identifier]",
		Short: "Print the sonar payload frame for an identifier",
		Long: `Print the 129-byte sonar payload frame for a 32-bit identifier.

Without an argument the identifier from the configuration is used.
Identifiers accept decimal, 0x-prefixed hex and negative values.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayload(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runPayload(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var identifier int32
	if len(args) == 1 {
		parsed, err := strconv.ParseInt(args[0], 0, 32)
		if err != nil {
			message := fmt.Sprintf("invalid identifier %q", args[0])
			_ = formatter.Error(ErrCodeArgument, message)
			return WrapExitError(ExitCommandError, message, err)
		}
		identifier = int32(parsed)
	} else {
		cfg, err := loadConfig(opts)
		if err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error())
			return WrapExitError(ExitCommandError, "load config", err)
		}
		formatter.VerboseLog("using sonar identifier from config for device %s", cfg.DeviceID)
		identifier = cfg.SonarIdentifier
	}

	frame := payload.NewSonarSupplier(identifier).Payload(time.Now())
	info := PayloadInfo{
		Identifier: identifier,
		ShortName:  frame.ShortName(),
		Length:     len(frame),
		Hex:        datatype.Data(frame).Hex(),
	}

	return formatter.Success(info, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%-12s%d\n%-12s%s\n%-12s%d\n%-12s%s\n",
			"identifier", info.Identifier,
			"short_name", info.ShortName,
			"length", info.Length,
			"hex", info.Hex,
		)
		return err
	})
}
