package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/app"
)

// program adapts the application loop to the system service manager.
type program struct {
	configPath string
	dataDir    string
	errCh      chan error
}

func (p *program) Start(service.Service) error {
	p.errCh = make(chan error, 1)
	go func() {
		p.errCh <- app.Run(app.RunParams{
			ConfigPath: p.configPath,
			DataDir:    p.dataDir,
			Version:    version,
			Commit:     commit,
			Date:       date,
		})
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	// app.Run exits on SIGTERM, which the service manager sends before
	// calling Stop. Nothing to tear down here.
	return nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run or manage parley as a system service",
	}

	var cfgPath, dataDir string
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the persistent data directory")

	newService := func() (service.Service, error) {
		args := []string{"service", "run"}
		if cfgPath != "" {
			args = append(args, "--config", cfgPath)
		}
		if dataDir != "" {
			args = append(args, "--data-dir", dataDir)
		}
		return service.New(&program{configPath: cfgPath, dataDir: dataDir}, &service.Config{
			Name:        "parley",
			DisplayName: "Parley",
			Description: "Streaming, tool-using chat backend",
			Arguments:   args,
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run under the service manager",
			RunE: func(*cobra.Command, []string) error {
				svc, err := newService()
				if err != nil {
					return err
				}
				return svc.Run()
			},
		},
		&cobra.Command{
			Use:   "install",
			Short: "Install as a system service",
			RunE: func(*cobra.Command, []string) error {
				svc, err := newService()
				if err != nil {
					return err
				}
				if err := svc.Install(); err != nil {
					return err
				}
				fmt.Println("Service installed.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "start",
			Short: "Start the installed service",
			RunE: func(*cobra.Command, []string) error {
				svc, err := newService()
				if err != nil {
					return err
				}
				if err := svc.Start(); err != nil {
					return err
				}
				fmt.Println("Service started.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the installed service",
			RunE: func(*cobra.Command, []string) error {
				svc, err := newService()
				if err != nil {
					return err
				}
				if err := svc.Stop(); err != nil {
					return err
				}
				fmt.Println("Service stopped.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Remove the system service",
			RunE: func(*cobra.Command, []string) error {
				svc, err := newService()
				if err != nil {
					return err
				}
				if err := svc.Uninstall(); err != nil {
					return err
				}
				fmt.Println("Service removed.")
				return nil
			},
		},
	)
	return cmd
}
