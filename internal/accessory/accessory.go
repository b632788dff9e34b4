package accessory

import (
	"sync"
	"time"
)

// Context ties an accessory back to the device that owns it.
type Context struct {
	ControllerMAC string `json:"controller_mac"`
	DeviceKey     string `json:"device_key"`
	MAC           string `json:"mac"`
}

// Change describes a value pushed by device logic or written from outside.
type Change struct {
	AccessoryUUID  string             `json:"accessory"`
	Service        ServiceType        `json:"service"`
	Subtype        string             `json:"subtype,omitempty"`
	Characteristic CharacteristicType `json:"characteristic"`
	Value          any                `json:"value"`
	Time           time.Time          `json:"time"`
}

// Accessory is one published device.
type Accessory struct {
	UUID string

	mu          sync.RWMutex
	displayName string
	context     Context
	services    []*Service

	notifyMu sync.RWMutex
	notify   func(Change)
}

// New creates an accessory with its AccessoryInformation service.
func New(uuid, displayName string) *Accessory {
	a := &Accessory{UUID: uuid, displayName: displayName}
	a.AddService(ServiceAccessoryInformation, displayName, "")
	return a
}

// DisplayName returns the accessory name.
func (a *Accessory) DisplayName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.displayName
}

// SetDisplayName renames the accessory.
func (a *Accessory) SetDisplayName(name string) {
	a.mu.Lock()
	a.displayName = name
	a.mu.Unlock()
}

// Context returns the owning device identifiers.
func (a *Accessory) Context() Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.context
}

// SetContext records the owning device identifiers.
func (a *Accessory) SetContext(c Context) {
	a.mu.Lock()
	a.context = c
	a.mu.Unlock()
}

// Service returns the service with the given type and subtype, or nil.
func (a *Accessory) Service(t ServiceType, subtype string) *Service {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, s := range a.services {
		if s.Type == t && s.Subtype == subtype {
			return s
		}
	}
	return nil
}

// AddService returns the existing service of that type and subtype, or adds one.
func (a *Accessory) AddService(t ServiceType, name, subtype string) *Service {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.services {
		if s.Type == t && s.Subtype == subtype {
			return s
		}
	}

	s := &Service{Type: t, Subtype: subtype, Name: name, acc: a}
	a.services = append(a.services, s)
	return s
}

// RemoveService detaches s from the accessory. Removing a service that is
// not attached does nothing.
func (a *Accessory) RemoveService(s *Service) {
	if s == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, existing := range a.services {
		if existing == s {
			a.services = append(a.services[:i], a.services[i+1:]...)
			return
		}
	}
}

// Services returns the attached services.
func (a *Accessory) Services() []*Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*Service(nil), a.services...)
}

func (a *Accessory) setNotify(fn func(Change)) {
	a.notifyMu.Lock()
	a.notify = fn
	a.notifyMu.Unlock()
}

func (a *Accessory) emit(c Change) {
	a.notifyMu.RLock()
	fn := a.notify
	a.notifyMu.RUnlock()

	if fn != nil {
		fn(c)
	}
}

// Service is a group of characteristics on an accessory.
type Service struct {
	Type    ServiceType
	Subtype string
	Name    string

	acc   *Accessory
	mu    sync.RWMutex
	chars []*Characteristic
}

// Characteristic returns the characteristic of type t, creating it if needed.
func (s *Service) Characteristic(t CharacteristicType) *Characteristic {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chars {
		if c.Type == t {
			return c
		}
	}

	c := &Characteristic{Type: t, svc: s}
	s.chars = append(s.chars, c)
	return c
}

// Lookup returns the characteristic of type t without creating it.
func (s *Service) Lookup(t CharacteristicType) *Characteristic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.chars {
		if c.Type == t {
			return c
		}
	}
	return nil
}

// Characteristics returns the service's characteristics.
func (s *Service) Characteristics() []*Characteristic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Characteristic(nil), s.chars...)
}

// Characteristic holds one typed value.
type Characteristic struct {
	Type CharacteristicType

	svc   *Service
	mu    sync.RWMutex
	value any
	onGet func() any
	onSet func(any) error
}

// OnGet installs a getter consulted by Value.
func (c *Characteristic) OnGet(fn func() any) *Characteristic {
	c.mu.Lock()
	c.onGet = fn
	c.mu.Unlock()
	return c
}

// OnSet installs the handler run for outside writes.
func (c *Characteristic) OnSet(fn func(any) error) *Characteristic {
	c.mu.Lock()
	c.onSet = fn
	c.mu.Unlock()
	return c
}

// Value returns the getter's value if one is installed, else the stored value.
func (c *Characteristic) Value() any {
	c.mu.RLock()
	get, v := c.onGet, c.value
	c.mu.RUnlock()

	if get != nil {
		return get()
	}
	return v
}

// SetInitial stores v without notifying listeners.
func (c *Characteristic) SetInitial(v any) *Characteristic {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
	return c
}

// UpdateValue stores v and notifies change listeners.
func (c *Characteristic) UpdateValue(v any) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()

	c.notify(v)
}

// write runs the set handler then stores and announces the value.
func (c *Characteristic) write(v any) error {
	c.mu.RLock()
	set := c.onSet
	c.mu.RUnlock()

	if set == nil {
		return ErrReadOnly
	}
	if err := set(v); err != nil {
		return err
	}

	c.UpdateValue(v)
	return nil
}

func (c *Characteristic) notify(v any) {
	s := c.svc
	if s == nil || s.acc == nil {
		return
	}
	s.acc.emit(Change{
		AccessoryUUID:  s.acc.UUID,
		Service:        s.Type,
		Subtype:        s.Subtype,
		Characteristic: c.Type,
		Value:          v,
		Time:           time.Now(),
	})
}
