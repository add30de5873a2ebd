package source

import "github.com/agentstation/orgsync/pkg/constants"

// Options controls how source records are transformed.
type Options struct {
	// RootUnit is the default scope root.
	RootUnit string
	// HierarchyFilter limits units to these org_unit_hierarchy uuids; empty allows all.
	HierarchyFilter []string

	// Address type uuids or user keys per channel in priority order.
	PhonePriority    []string
	LandlinePriority []string
	EmailPriority    []string
	PostPriority     []string

	// UseContactForTasks maps "Ansvarlig" KLE aspects to ContactForTasks.
	UseContactForTasks bool
	// IdentityITSystems are the it-systems whose account user key overrides
	// an entity's identity, in priority order.
	IdentityITSystems []string
	// UserKeyITSystem supplies the UserId of users.
	UserKeyITSystem string

	XferCpr      bool
	SyncManagers bool

	// NameMaxLength truncates position names to this many runes.
	NameMaxLength int
}

// Option configures a Reader.
type Option func(*Options)

// WithRootUnit sets the default scope root.
func WithRootUnit(uuid string) Option {
	return func(o *Options) { o.RootUnit = uuid }
}

// WithHierarchyFilter limits the units in scope.
func WithHierarchyFilter(uuids ...string) Option {
	return func(o *Options) { o.HierarchyFilter = uuids }
}

// WithAddressPriorities sets the per-channel address priority lists.
func WithAddressPriorities(phone, landline, email, post []string) Option {
	return func(o *Options) {
		o.PhonePriority = phone
		o.LandlinePriority = landline
		o.EmailPriority = email
		o.PostPriority = post
	}
}

// WithContactForTasks enables the ContactForTasks mapping.
func WithContactForTasks(enabled bool) Option {
	return func(o *Options) { o.UseContactForTasks = enabled }
}

// WithIdentityITSystems sets the identity it-systems.
func WithIdentityITSystems(systems ...string) Option {
	return func(o *Options) { o.IdentityITSystems = systems }
}

// WithUserKeyITSystem sets the it-system that supplies UserId.
func WithUserKeyITSystem(system string) Option {
	return func(o *Options) { o.UserKeyITSystem = system }
}

// WithCpr enables transfer of CPR numbers.
func WithCpr(enabled bool) Option {
	return func(o *Options) { o.XferCpr = enabled }
}

// WithManagers enables transfer of unit managers.
func WithManagers(enabled bool) Option {
	return func(o *Options) { o.SyncManagers = enabled }
}

// WithNameMaxLength sets the position name limit.
func WithNameMaxLength(n int) Option {
	return func(o *Options) { o.NameMaxLength = n }
}

func defaultOptions() Options {
	return Options{NameMaxLength: constants.DefaultNameMaxLength}
}
