package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// OptionPrefix is the namespace of every option name on the node side.
const OptionPrefix = "vitality-"

// Option names, without prefix.
const (
	OptWatchChannels     = "watch-channels"
	OptWatchGossip       = "watch-gossip"
	OptAmboss            = "amboss"
	OptExpiringHtlcs     = "expiring-htlcs"
	OptTelegramToken     = "telegram-token"
	OptTelegramUsernames = "telegram-usernames"
	OptSMTPUsername      = "smtp-username"
	OptSMTPPassword      = "smtp-password"
	OptSMTPServer        = "smtp-server"
	OptSMTPPort          = "smtp-port"
	OptEmailFrom         = "email-from"
	OptEmailTo           = "email-to"
)

var (
	ErrUnknownOption = errors.New("unknown option")
	ErrNotBoolean    = errors.New("not a valid boolean")
	ErrNotInteger    = errors.New("not a valid integer")
	ErrOutOfRange    = errors.New("out of range")
)

// ConfigValidationError is returned when an option value is rejected.
type ConfigValidationError struct {
	Option string
	Value  string
	Err    error
}

func (e *ConfigValidationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrNotBoolean):
		return fmt.Sprintf("%s is not a valid boolean!", e.Option)
	case errors.Is(e.Err, ErrNotInteger):
		return fmt.Sprintf("%s is not a valid integer!", e.Option)
	case errors.Is(e.Err, ErrOutOfRange):
		return fmt.Sprintf("%s is out of range: %s", e.Option, e.Value)
	default:
		return fmt.Sprintf("%s: %v", e.Option, e.Err)
	}
}

func (e *ConfigValidationError) Unwrap() error { return e.Err }

// Options is an immutable snapshot of the live-updatable settings.
// Version increases by one on every accepted change.
type Options struct {
	Version uint64

	WatchChannels bool
	WatchGossip   bool
	Amboss        bool
	ExpiringHtlcs *uint32 // nil = htlc watcher disabled

	TelegramToken     string
	TelegramUsernames []string

	SMTPUsername string
	SMTPPassword string
	SMTPServer   string
	SMTPPort     uint16
	EmailFrom    string
	EmailTo      string
}

// Clone returns a deep copy.
func (o *Options) Clone() *Options {
	c := *o
	if o.ExpiringHtlcs != nil {
		v := *o.ExpiringHtlcs
		c.ExpiringHtlcs = &v
	}
	c.TelegramUsernames = append([]string(nil), o.TelegramUsernames...)
	return &c
}

// ProbeEnabled reports whether the reachability prober has any work to do.
func (o *Options) ProbeEnabled() bool {
	return o.WatchGossip || o.Amboss
}

// TelegramActive reports whether the telegram provider is fully configured.
func (o *Options) TelegramActive() bool {
	return o.TelegramToken != "" && len(o.TelegramUsernames) > 0
}

// EmailActive reports whether every email field is present.
func (o *Options) EmailActive() bool {
	return o.SMTPUsername != "" &&
		o.SMTPPassword != "" &&
		o.SMTPServer != "" &&
		o.SMTPPort > 0 &&
		o.EmailFrom != "" &&
		o.EmailTo != ""
}

// EmailRecipients splits email-to on commas.
func (o *Options) EmailRecipients() []string {
	return splitList(o.EmailTo)
}

// NotifySettingsEqual reports whether two snapshots configure the same providers.
func (o *Options) NotifySettingsEqual(other *Options) bool {
	if o.TelegramToken != other.TelegramToken ||
		strings.Join(o.TelegramUsernames, ",") != strings.Join(other.TelegramUsernames, ",") {
		return false
	}
	return o.SMTPUsername == other.SMTPUsername &&
		o.SMTPPassword == other.SMTPPassword &&
		o.SMTPServer == other.SMTPServer &&
		o.SMTPPort == other.SMTPPort &&
		o.EmailFrom == other.EmailFrom &&
		o.EmailTo == other.EmailTo
}

// Values renders the snapshot by option name, with secrets masked.
func (o *Options) Values() map[string]string {
	htlcs := ""
	if o.ExpiringHtlcs != nil {
		htlcs = strconv.FormatUint(uint64(*o.ExpiringHtlcs), 10)
	}
	port := ""
	if o.SMTPPort > 0 {
		port = strconv.Itoa(int(o.SMTPPort))
	}
	return map[string]string{
		OptWatchChannels:     strconv.FormatBool(o.WatchChannels),
		OptWatchGossip:       strconv.FormatBool(o.WatchGossip),
		OptAmboss:            strconv.FormatBool(o.Amboss),
		OptExpiringHtlcs:     htlcs,
		OptTelegramToken:     mask(o.TelegramToken),
		OptTelegramUsernames: strings.Join(o.TelegramUsernames, ","),
		OptSMTPUsername:      o.SMTPUsername,
		OptSMTPPassword:      mask(o.SMTPPassword),
		OptSMTPServer:        o.SMTPServer,
		OptSMTPPort:          port,
		OptEmailFrom:         o.EmailFrom,
		OptEmailTo:           o.EmailTo,
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

type valueKind int

const (
	kindBool valueKind = iota
	kindUint
	kindString
)

type optionDef struct {
	kind  valueKind
	bits  int
	apply func(o *Options, b bool, n uint64, s string)
}

var optionDefs = map[string]optionDef{
	OptWatchChannels: {kind: kindBool, apply: func(o *Options, b bool, _ uint64, _ string) { o.WatchChannels = b }},
	OptWatchGossip:   {kind: kindBool, apply: func(o *Options, b bool, _ uint64, _ string) { o.WatchGossip = b }},
	OptAmboss:        {kind: kindBool, apply: func(o *Options, b bool, _ uint64, _ string) { o.Amboss = b }},
	OptExpiringHtlcs: {kind: kindUint, bits: 32, apply: func(o *Options, _ bool, n uint64, _ string) {
		v := uint32(n)
		o.ExpiringHtlcs = &v
	}},
	OptTelegramToken: {kind: kindString, apply: func(o *Options, _ bool, _ uint64, s string) { o.TelegramToken = s }},
	OptTelegramUsernames: {kind: kindString, apply: func(o *Options, _ bool, _ uint64, s string) {
		o.TelegramUsernames = splitList(s)
	}},
	OptSMTPUsername: {kind: kindString, apply: func(o *Options, _ bool, _ uint64, s string) { o.SMTPUsername = s }},
	OptSMTPPassword: {kind: kindString, apply: func(o *Options, _ bool, _ uint64, s string) { o.SMTPPassword = s }},
	OptSMTPServer:   {kind: kindString, apply: func(o *Options, _ bool, _ uint64, s string) { o.SMTPServer = s }},
	OptSMTPPort: {kind: kindUint, bits: 16, apply: func(o *Options, _ bool, n uint64, _ string) {
		o.SMTPPort = uint16(n)
	}},
	OptEmailFrom: {kind: kindString, apply: func(o *Options, _ bool, _ uint64, s string) { o.EmailFrom = s }},
	OptEmailTo:   {kind: kindString, apply: func(o *Options, _ bool, _ uint64, s string) { o.EmailTo = s }},
}

// OptionNames returns every recognized option name, sorted, without prefix.
func OptionNames() []string {
	names := make([]string, 0, len(optionDefs))
	for name := range optionDefs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanonicalName strips the optional prefix.
func CanonicalName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), OptionPrefix)
}

// Apply validates value and writes it into o. On error o is left untouched.
func (o *Options) Apply(name, value string) error {
	name = CanonicalName(name)
	def, ok := optionDefs[name]
	if !ok {
		return &ConfigValidationError{Option: OptionPrefix + name, Value: value, Err: ErrUnknownOption}
	}

	switch def.kind {
	case kindBool:
		b, err := parseBool(value)
		if err != nil {
			return &ConfigValidationError{Option: OptionPrefix + name, Value: value, Err: err}
		}
		def.apply(o, b, 0, "")
	case kindUint:
		n, err := parseUint(value, def.bits)
		if err != nil {
			return &ConfigValidationError{Option: OptionPrefix + name, Value: value, Err: err}
		}
		def.apply(o, false, n, "")
	default:
		def.apply(o, false, 0, value)
	}
	return nil
}

// ParseOptions builds the initial snapshot from name/value pairs.
func ParseOptions(values map[string]string) (*Options, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	o := &Options{}
	for _, name := range names {
		if err := o.Apply(name, values[name]); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// parseBool accepts exactly "true" or "false".
func parseBool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, ErrNotBoolean
	}
}

func parseUint(s string, bits int) (uint64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	if n < 0 || uint64(n) > maxUint(bits) {
		return 0, ErrOutOfRange
	}
	return uint64(n), nil
}

func maxUint(bits int) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return 1<<uint(bits) - 1
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
