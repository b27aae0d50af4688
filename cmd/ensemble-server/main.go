// Command ensemble-server runs C8, the elasticity control-plane
// endpoint: "ensemble-server start [--workers N] [--port P]
// [--host H] [--kubernetes]".
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"ensemble/internal/elasticity/orchestrator"
	"ensemble/internal/elasticity/orchestrator/k8s"
	elasticityserver "ensemble/internal/elasticity/server"
	"ensemble/internal/wiremsg"
	"ensemble/pkg/cache"
	"ensemble/pkg/config"
	"ensemble/pkg/logger"
	"ensemble/pkg/metrics"
	"ensemble/pkg/passhash"
	"ensemble/pkg/server"
)

const serviceAccountNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

func main() {
	flagSet := flag.NewFlagSet("ensemble-server", flag.ExitOnError)
	port := flagSet.Int("port", 0, "override grpc.port from config")
	host := flagSet.String("host", "", "bind host (informational; grpc server binds all interfaces)")
	namespace := flagSet.String("namespace", "", "kubernetes namespace for compute pool lookups")
	useKubernetes := flagSet.Bool("kubernetes", false, "use a live Kubernetes orchestrator instead of the in-memory stub")
	_ = flagSet.Int("workers", 1, "reserved: number of interceptor worker goroutines (unused, single reactor model)")

	if len(os.Args) < 2 || os.Args[1] != "start" {
		fmt.Fprintln(os.Stderr, "usage: ensemble-server start [--workers N] [--port P] [--host H] [--kubernetes]")
		os.Exit(1)
	}
	if err := flagSet.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	cfg, err := config.LoadWithServiceDefaults("ensemble-server", 50052)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.GRPC.Port = *port
	}
	_ = host

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)

	ns := resolveNamespace(*namespace, *useKubernetes)

	var orch orchestrator.Orchestrator
	if *useKubernetes {
		restCfg, err := kubeConfig()
		if err != nil {
			logger.Fatal("failed to build kubernetes client config", "error", err)
		}
		dyn, err := dynamic.NewForConfig(restCfg)
		if err != nil {
			logger.Fatal("failed to build kubernetes dynamic client", "error", err)
		}
		backing := k8s.New(dyn, ns)
		if poolCache, err := cache.New(cache.FromConfig(&cfg.Cache)); err == nil {
			orch = orchestrator.NewCached(backing, poolCache, 5*time.Second)
			logger.Log.Info("wrapped kubernetes orchestrator with a read-through pool cache", "ttl", "5s")
		} else {
			logger.Log.Warn("compute pool cache unavailable, querying kubernetes directly", "error", err)
			orch = backing
		}
		logger.Log.Info("using kubernetes orchestrator", "namespace", ns)
	} else {
		orch = orchestrator.NewInMemory()
		logger.Log.Info("using in-memory orchestrator stub", "namespace", ns)
	}

	var cred *passhash.CredentialManager
	if cfg.Credential.Enabled {
		cred = passhash.NewCredentialManager(&passhash.CredentialConfig{
			SecretKey: cfg.Credential.SecretKey,
			Issuer:    cfg.Credential.Issuer,
			TTL:       cfg.Credential.TTL,
		})
	}

	srv := server.New(cfg)
	elasticitySrv := elasticityserver.New(orch, ns, srv.GetAuditLogger(), metrics.Get(), cred)
	wiremsg.RegisterElasticityServer(srv.GetEngine(), elasticitySrv)

	logger.Log.Info("starting ensemble-server", "port", cfg.GRPC.Port, "kubernetes", *useKubernetes)
	if err := srv.Run(); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}

func resolveNamespace(flagValue string, kubernetesMode bool) string {
	if flagValue != "" {
		return flagValue
	}
	if kubernetesMode {
		if data, err := os.ReadFile(serviceAccountNamespaceFile); err == nil {
			if ns := string(data); ns != "" {
				return ns
			}
		}
	}
	return "default"
}

func kubeConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			kubeconfig = home + "/.kube/config"
		}
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}
