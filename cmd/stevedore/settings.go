package main

import (
	"cmp"
	"flag"

	"github.com/davidmdm/conf"

	"github.com/stevedore-dev/stevedore/internal/home"
)

type GlobalSettings struct {
	KubeConfigPath string
	Namespace      string
	Verbose        bool
}

// LoadSettings resolves defaults from the environment. Flags registered via
// RegisterGlobalFlags override them per invocation.
func LoadSettings() (GlobalSettings, error) {
	var settings GlobalSettings

	conf.Var(conf.Environ, &settings.KubeConfigPath, "STEVEDORE_KUBECONFIG")
	conf.Var(conf.Environ, &settings.Namespace, "STEVEDORE_NAMESPACE")
	conf.Var(conf.Environ, &settings.Verbose, "STEVEDORE_VERBOSE")

	if err := conf.Environ.Parse(); err != nil {
		return settings, err
	}

	settings.KubeConfigPath = cmp.Or(settings.KubeConfigPath, home.Kubeconfig)
	settings.Namespace = cmp.Or(settings.Namespace, "default")

	return settings, nil
}

func RegisterGlobalFlags(flagset *flag.FlagSet, settings *GlobalSettings) {
	flagset.StringVar(&settings.KubeConfigPath, "kubeconfig", settings.KubeConfigPath, "path to kube config")
	flagset.StringVar(&settings.Namespace, "namespace", settings.Namespace, "preferred namespace for descriptors that do not declare one")
	flagset.BoolVar(&settings.Verbose, "verbose", settings.Verbose, "print debug timings to stderr")
}
