// Package service defines the Service lifecycle interface and the registry
// that the Node composition root uses to start and stop every subsystem in
// a deterministic order, the same shape used by every Prysm-era node.go.
package service

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "service")

// Service must be implemented by anything the Node registers: the
// consensus manager, the gossip controller, the sync managers, the slot
// scheduler, and so on.
type Service interface {
	Start()
	Stop() error
}

// Registry tracks each registered service by its concrete type so the Node
// can both start/stop them in registration order and fetch one service
// from within another's constructor (e.g. the gossip controller fetching
// the already-registered consensus manager).
type Registry struct {
	lock        sync.Mutex
	services    map[reflect.Type]Service
	serviceTypes []reflect.Type // keeps start/stop order == registration order
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[reflect.Type]Service),
	}
}

// RegisterService adds a new service to the registry. Returns an error if
// a service of the same concrete type is already present.
func (r *Registry) RegisterService(s Service) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	kind := reflect.TypeOf(s)
	if _, exists := r.services[kind]; exists {
		return fmt.Errorf("service already exists: %v", kind)
	}
	r.services[kind] = s
	r.serviceTypes = append(r.serviceTypes, kind)
	return nil
}

// FetchService sets dest, which must be a non-nil pointer to a registered
// service's interface/type, to the matching registered instance.
func (r *Registry) FetchService(dest interface{}) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	destPtr := reflect.ValueOf(dest)
	if destPtr.Kind() != reflect.Ptr {
		return fmt.Errorf("dest must be a pointer")
	}
	element := destPtr.Elem()
	if s, exists := r.services[element.Type()]; exists {
		element.Set(reflect.ValueOf(s))
		return nil
	}
	return fmt.Errorf("unknown service: %v", element.Type())
}

// StartAll starts every registered service in registration order.
func (r *Registry) StartAll() {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, kind := range r.serviceTypes {
		log.WithField("service", kind).Debug("Starting service")
		r.services[kind].Start()
	}
}

// StopAll stops every registered service in reverse registration order,
// logging but not aborting on individual failures so a single stuck
// subsystem cannot block the rest of shutdown.
func (r *Registry) StopAll() {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i := len(r.serviceTypes) - 1; i >= 0; i-- {
		kind := r.serviceTypes[i]
		if err := r.services[kind].Stop(); err != nil {
			log.WithField("service", kind).WithError(err).Error("Could not stop service")
		}
	}
}
