package main

import (
	"github.com/spf13/cobra"

	"github.com/openrig/rigup/pkg/device"
)

// NewPortsCommand .
func NewPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ports",
		Short:   "List the serial ports on this machine",
		GroupID: gPreflight,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := device.ListPorts()
			if err != nil {
				return err
			}

			if len(ports) == 0 {
				cmd.Println("no serial ports found")
				return nil
			}
			for _, p := range ports {
				cmd.Println(p)
			}

			return nil
		},
	}
}
