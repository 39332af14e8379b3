package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/flowrunner/pkg/ipc"
	"github.com/cuemby/flowrunner/pkg/liveness"
	"github.com/cuemby/flowrunner/pkg/log"
	"github.com/cuemby/flowrunner/pkg/memory"
	"github.com/cuemby/flowrunner/pkg/metricsapi"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/pipeline"
	"github.com/cuemby/flowrunner/pkg/queue"
	"github.com/cuemby/flowrunner/pkg/registry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/flowrunner/nodes/common"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "flowctl",
	Short:   "flowctl - staged data-flow pipeline runtime",
	Long:    `flowctl runs a pipeline of cooperating nodes described by a YAML configuration document, wiring named queues between them and supervising the run to completion.`,
	Version: Version,
}

var (
	Version = "dev"
	Commit  = "unknown"
)

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("flowctl version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(nodeRunCmd)
	rootCmd.AddCommand(livenessCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// newRegistry builds a *registry.Registry with every built-in node
// class available to a configuration document.
func newRegistry() *registry.Registry {
	r := registry.New()
	common.Register(r)
	return r
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build and run a pipeline from a configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		spec, err := pipeline.LoadSpec(configPath)
		if err != nil {
			return err
		}
		p, err := pipeline.Build(newRegistry(), spec)
		if err != nil {
			return fmt.Errorf("building pipeline: %w", err)
		}

		var metricsSrv *metricsapi.Server
		if spec.MetricsAddr != "" {
			metricsSrv = metricsapi.New(spec.MetricsAddr, p)
			metricsSrv.Start()
		}

		if err := p.Run(); err != nil {
			return fmt.Errorf("starting pipeline: %w", err)
		}
		fmt.Printf("✓ Pipeline running (run %s). Press Ctrl+C to stop.\n", p.RunID())

		done := make(chan struct{})
		go func() {
			p.Wait()
			close(done)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		var g errgroup.Group
		g.Go(func() error {
			select {
			case <-done:
				return nil
			case <-sigCh:
				fmt.Println("\nShutting down...")
				p.Shutdown()
				<-done
				return nil
			}
		})
		if err := g.Wait(); err != nil {
			return err
		}

		if metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Stop(ctx)
		}

		fmt.Println("✓ Pipeline finished")
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a pipeline configuration without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		spec, err := pipeline.LoadSpec(configPath)
		if err != nil {
			return err
		}
		p, err := pipeline.Build(newRegistry(), spec)
		if err != nil {
			return fmt.Errorf("invalid pipeline: %w", err)
		}
		defer p.Shutdown()

		fmt.Printf("✓ Pipeline valid: %d node(s)\n", len(p.Nodes()))
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to the pipeline YAML configuration")
	runCmd.MarkFlagRequired("config")

	validateCmd.Flags().String("config", "", "Path to the pipeline YAML configuration")
	validateCmd.MarkFlagRequired("config")
}

// nodeRunCmd is the hidden re-exec entry point for a PROCESS-isolated
// node's child: it decodes the record the parent encoded, hydrates its
// own Processor against a remote Shared handle, dials its declared
// queues, and runs the same node loop a TASK node runs in-process
// (spec.md §9's "a PROCESS node is a different address space, not a
// different program").
var nodeRunCmd = &cobra.Command{
	Use:    "__noderun",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		encoded, _ := cmd.Flags().GetString("record")

		rec, err := pipeline.DecodeRecord(encoded)
		if err != nil {
			return err
		}

		cc, err := ipc.Dial(addr)
		if err != nil {
			return fmt.Errorf("noderun: dialing home: %w", err)
		}
		defer cc.Close()

		shared := memory.NewSharedRemote(ipc.NewKVClient(cc))

		r := newRegistry()
		n, err := registry.Hydrate(r, rec, shared)
		if err != nil {
			return fmt.Errorf("noderun: hydrating %q: %w", rec.Name, err)
		}

		ctx := context.Background()
		for _, name := range n.Inputs() {
			rq, err := ipc.DialQueue(ctx, cc, name, ipc.RoleConsumer)
			if err != nil {
				return fmt.Errorf("noderun: attaching input %q: %w", name, err)
			}
			n.AttachInput(queue.NewRemote(name, ipc.RoleConsumer, rq))
		}
		for _, name := range n.Outputs() {
			rq, err := ipc.DialQueue(ctx, cc, name, ipc.RoleProducer)
			if err != nil {
				return fmt.Errorf("noderun: attaching output %q: %w", name, err)
			}
			n.AttachOutput(queue.NewRemote(name, ipc.RoleProducer, rq))
		}

		n.EnableRemoteStatus("node:" + n.Name() + ":status")

		if err := n.Start(); err != nil {
			return fmt.Errorf("noderun: starting %q: %w", n.Name(), err)
		}
		n.Join()
		return nil
	},
}

func init() {
	nodeRunCmd.Flags().String("addr", "", "Address of the pipeline's ipc server")
	nodeRunCmd.Flags().String("record", "", "Base64-encoded JSON configuration record")
	nodeRunCmd.MarkFlagRequired("addr")
	nodeRunCmd.MarkFlagRequired("record")
}

// livenessCmd is the hidden re-exec entry point for the liveness
// monitor — not a registry-hydrated node, since it is framework
// infrastructure rather than a user-configured processing unit
// (spec.md §4.H).
var livenessCmd = &cobra.Command{
	Use:    "__liveness",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		profile, _ := cmd.Flags().GetString("profile")

		cc, err := ipc.Dial(addr)
		if err != nil {
			return fmt.Errorf("liveness: dialing home: %w", err)
		}
		defer cc.Close()

		shared := memory.NewSharedRemote(ipc.NewKVClient(cc))
		monitor := liveness.New(shared, liveness.Profile(profile), liveness.ParentPID())

		n := node.New(node.Config{Name: "liveness", Isolation: node.Process, Timeout: time.Second}, monitor, shared)
		if err := n.Start(); err != nil {
			return fmt.Errorf("liveness: starting: %w", err)
		}
		n.Join()
		return nil
	},
}

func init() {
	livenessCmd.Flags().String("addr", "", "Address of the pipeline's ipc server")
	livenessCmd.Flags().String("profile", string(liveness.ContainerProfile), "Staleness profile (container or vm)")
	livenessCmd.MarkFlagRequired("addr")
}
