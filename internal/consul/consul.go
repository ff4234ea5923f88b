package consul

import (
	"fmt"
	"log/slog"

	consulapi "github.com/hashicorp/consul/api"
)

type Registry struct {
	client *consulapi.Client
	log    *slog.Logger
}

func NewRegistry(addr string, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	config := consulapi.DefaultConfig()
	config.Address = addr

	client, err := consulapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("creating consul client: %w", err)
	}
	return &Registry{client: client, log: log}, nil
}

// Register announces the service with an HTTP check against /ping.
func (r *Registry) Register(instanceID, serviceName, host string, port int) error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      instanceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			CheckID:                        instanceID,
			HTTP:                           fmt.Sprintf("http://%s:%d/ping", host, port),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := r.client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("registering %s: %w", serviceName, err)
	}
	r.log.Info("registered with consul", slog.String("service", serviceName), slog.String("id", instanceID))
	return nil
}

func (r *Registry) Deregister(instanceID string) error {
	r.log.Info("deregistering from consul", slog.String("id", instanceID))
	return r.client.Agent().ServiceDeregister(instanceID)
}
