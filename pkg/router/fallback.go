package router

import (
	"errors"
	"io"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// DefaultFallbacks returns the built-in fallback chains.
func DefaultFallbacks() map[notifications.Channel][]notifications.Channel {
	return map[notifications.Channel][]notifications.Channel{
		notifications.ChannelPush: {notifications.ChannelWeb, notifications.ChannelEmail},
		notifications.ChannelWeb:  {notifications.ChannelPush, notifications.ChannelEmail},
		notifications.ChannelSMS:  {notifications.ChannelPush, notifications.ChannelEmail},
	}
}

type fallbackDoc struct {
	Fallbacks map[string][]string `yaml:"fallbacks"`
}

// LoadFallbacks reads chains from YAML:
//
//	fallbacks:
//	  push: [web, email]
//	  webhook: [email]
//
// An empty list disables fallback for that channel.
func LoadFallbacks(r io.Reader) (map[notifications.Channel][]notifications.Channel, error) {
	var doc fallbackDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[notifications.Channel][]notifications.Channel{}, nil
		}
		return nil, errors.Join(ErrInvalidFallbackDoc, err)
	}
	out := make(map[notifications.Channel][]notifications.Channel, len(doc.Fallbacks))
	for ch, list := range doc.Fallbacks {
		if ch == "" {
			return nil, errors.Join(ErrInvalidFallbackDoc, notifications.Required("channel"))
		}
		chain := make([]notifications.Channel, 0, len(list))
		for _, fb := range list {
			if fb == "" || fb == ch {
				continue
			}
			chain = append(chain, notifications.Channel(fb))
		}
		out[notifications.Channel(ch)] = chain
	}
	return out, nil
}

func cloneFallbacks(in map[notifications.Channel][]notifications.Channel) map[notifications.Channel][]notifications.Channel {
	out := maps.Clone(in)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}
