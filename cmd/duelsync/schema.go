package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/cbodonnell/duelsync/pkg/messages"
)

type SchemaOptions struct {
	*RootOptions
	Out string
}

func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schemas of every broker payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas := buildSchemas()
			if opts.Out == "" {
				return writeResult(cmd.OutOrStdout(), schemas)
			}
			return writeSchemas(opts.Out, schemas)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "write the schemas to this file instead of stdout")

	return cmd
}

// buildSchemas reflects one schema per payload, keyed by the topic role it
// is published on.
func buildSchemas() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	payloads := map[string]struct {
		v           interface{}
		title       string
		description string
	}{
		"action": {
			v:           &messages.ActionMessage{},
			title:       "Action",
			description: "A confirmed game action, optionally with the resulting game state.",
		},
		"game_state": {
			v:           &messages.GameStateMessage{},
			title:       "Game State",
			description: "The server-authoritative state of both players.",
		},
		"visibility_request": {
			v:           &messages.VisibilityRequest{},
			title:       "Visibility Request",
			description: "A server poll for one player's visibility.",
		},
		"visibility_feedback": {
			v:           &messages.VisibilityFeedback{},
			title:       "Visibility Feedback",
			description: "The reply to a visibility request.",
		},
		"device_status": {
			v:           &messages.DeviceStatusMessage{},
			title:       "Device Status",
			description: "Peripheral connectivity of both players.",
		},
		"action_intent": {
			v:           &messages.ActionIntent{},
			title:       "Action Intent",
			description: "A local action submitted to the game server.",
		},
	}

	schemas := make(map[string]*jsonschema.Schema, len(payloads))
	for name, p := range payloads {
		schema := reflector.Reflect(p.v)
		schema.Title = p.title
		schema.Description = p.description
		schemas[name] = schema
	}
	return schemas
}

func writeSchemas(outPath string, schemas map[string]*jsonschema.Schema) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create schema directory: %v", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create schema file: %v", err)
	}
	defer f.Close()
	return writeResult(f, schemas)
}
