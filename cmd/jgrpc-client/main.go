// Command jgrpc-client calls the demo hello service through discovery and
// prints the result, as a minimal exercise of the full client call path.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/client"
	"github.com/jinguan/jgrpc/codec"
	"github.com/jinguan/jgrpc/config"
	"github.com/jinguan/jgrpc/example/helloservice"
	"github.com/jinguan/jgrpc/lifecycle"
	"github.com/jinguan/jgrpc/loadbalance"
	"github.com/jinguan/jgrpc/registry"
)

func main() {
	var configPath, name string

	cmd := &cobra.Command{
		Use:   "jgrpc-client",
		Short: "Call the demo hello service via discovery",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath, name)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&name, "name", "world", "name to greet")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, cfg.Namespace, log)
	if err != nil {
		return fmt.Errorf("connect to directory: %w", err)
	}
	defer reg.Close()
	discovery := registry.NewWatchingDiscoverer(reg)

	bal, err := selectBalancer(cfg.Balancer)
	if err != nil {
		return err
	}

	c, err := selectCodec(cfg.Serializer)
	if err != nil {
		return err
	}

	engine := client.NewEngine(discovery, bal, c, cfg.ConnectTimeout, log)
	life := lifecycle.NewClientLifecycle(engine)
	defer life.Close()

	helloStub := helloservice.NewStub(engine).WithTimeout(cfg.CallTimeout)
	greeting, err := helloStub.Hello(name)
	if err != nil {
		return fmt.Errorf("call hello: %w", err)
	}

	fmt.Println(greeting)
	return nil
}

func selectBalancer(name string) (loadbalance.Balancer, error) {
	switch name {
	case "round_robin", "":
		return loadbalance.NewRoundRobinBalancer(), nil
	case "random":
		return loadbalance.NewRandomBalancer(), nil
	case "consistent_hash":
		return loadbalance.NewConsistentHashBalancer(), nil
	default:
		return nil, fmt.Errorf("unknown balancer %q", name)
	}
}

func selectCodec(name string) (codec.Codec, error) {
	switch name {
	case "json", "":
		return codec.Get(codec.TagJSON)
	case "native":
		return codec.Get(codec.TagNative)
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}
