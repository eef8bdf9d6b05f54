// Copyright 2025 The zb Authors
// SPDX-License-Identifier: MIT

package luac

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"
	"runtime"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"
	"zb.256lights.llc/luac53/internal/luacode"
)

// config is the set of options that can be given in a configuration file.
type config struct {
	Debug      bool         `json:"debug"`
	StripDebug bool         `json:"stripDebug"`
	Listing    int          `json:"listing"`
	CacheDB    string       `json:"cacheDB"`
	Cache      bool         `json:"cache"`
	Jobs       int          `json:"jobs"`
	Header     headerConfig `json:"header"`
}

// headerConfig describes the target platform of the written chunk.
// Zero fields keep the value from [luacode.DefaultHeader].
type headerConfig struct {
	IntSize     int       `json:"intSize"`
	SizeTSize   int       `json:"sizeTSize"`
	IntegerSize int       `json:"integerSize"`
	NumberSize  int       `json:"numberSize"`
	ByteOrder   byteOrder `json:"byteOrder"`
}

func defaultConfig() *config {
	return &config{
		Cache: true,
		Jobs:  runtime.GOMAXPROCS(0),
	}
}

func (cfg *config) mergeFiles(paths iter.Seq[string]) error {
	for path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, cfg, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}
	return nil
}

// UnmarshalJSONFrom unmarshals the configuration object from the JSON decoder,
// merging any fields in the JSON object with existing values.
func (cfg *config) UnmarshalJSONFrom(in *jsontext.Decoder) error {
	return unmarshalObject(in, "config", func(k string) error {
		var err error
		switch k {
		case "debug":
			err = jsonv2.UnmarshalDecode(in, &cfg.Debug)
		case "stripDebug":
			err = jsonv2.UnmarshalDecode(in, &cfg.StripDebug)
		case "listing":
			err = jsonv2.UnmarshalDecode(in, &cfg.Listing)
		case "cacheDB":
			err = jsonv2.UnmarshalDecode(in, &cfg.CacheDB)
		case "cache":
			err = jsonv2.UnmarshalDecode(in, &cfg.Cache)
		case "jobs":
			err = jsonv2.UnmarshalDecode(in, &cfg.Jobs)
		case "header":
			err = cfg.Header.UnmarshalJSONFrom(in)
		default:
			return skipUnknown(in, "config", k)
		}
		if err != nil {
			return fmt.Errorf("unmarshal config.%s: %w", k, err)
		}
		return nil
	})
}

// UnmarshalJSONFrom unmarshals the header object from the JSON decoder,
// merging any fields in the JSON object with existing values.
func (hc *headerConfig) UnmarshalJSONFrom(in *jsontext.Decoder) error {
	return unmarshalObject(in, "header", func(k string) error {
		var err error
		switch k {
		case "intSize":
			err = jsonv2.UnmarshalDecode(in, &hc.IntSize)
		case "sizeTSize":
			err = jsonv2.UnmarshalDecode(in, &hc.SizeTSize)
		case "integerSize":
			err = jsonv2.UnmarshalDecode(in, &hc.IntegerSize)
		case "numberSize":
			err = jsonv2.UnmarshalDecode(in, &hc.NumberSize)
		case "byteOrder":
			var s string
			if err = jsonv2.UnmarshalDecode(in, &s); err == nil {
				err = hc.ByteOrder.Set(s)
			}
		default:
			return skipUnknown(in, "header", k)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		return nil
	})
}

// unmarshalObject reads a JSON object from the decoder,
// calling field for each member after reading its name.
// field must consume the member's value.
func unmarshalObject(in *jsontext.Decoder, what string, field func(k string) error) error {
	tok, err := in.ReadToken()
	if err != nil {
		return err
	}
	if got := tok.Kind(); got != '{' {
		return fmt.Errorf("%s must be an object not a %v", what, got)
	}

	for {
		keyToken, err := in.ReadToken()
		if err != nil {
			return err
		}
		switch kind := keyToken.Kind(); kind {
		case '}':
			return nil
		case '"':
			// Keep going.
		default:
			return fmt.Errorf("unexpected non-string key (%v) in object", kind)
		}
		if err := field(keyToken.String()); err != nil {
			return err
		}
	}
}

func skipUnknown(in *jsontext.Decoder, what string, k string) error {
	if reject, _ := jsonv2.GetOption(in.Options(), jsonv2.RejectUnknownMembers); reject {
		return fmt.Errorf("unmarshal %s: unknown field %q", what, k)
	}
	return in.SkipValue()
}

// header returns the chunk header described by the configuration.
func (hc *headerConfig) header() (luacode.Header, error) {
	h := luacode.DefaultHeader()
	for _, f := range []struct {
		name string
		src  int
		dst  *byte
	}{
		{"intSize", hc.IntSize, &h.IntSize},
		{"sizeTSize", hc.SizeTSize, &h.SizeTSize},
		{"integerSize", hc.IntegerSize, &h.IntegerSize},
		{"numberSize", hc.NumberSize, &h.NumberSize},
	} {
		switch f.src {
		case 0:
		case 4, 8:
			*f.dst = byte(f.src)
		default:
			return luacode.Header{}, fmt.Errorf("header.%s must be 4 or 8 (got %d)", f.name, f.src)
		}
	}
	if hc.ByteOrder.order != nil {
		h.ByteOrder = hc.ByteOrder.order
	}
	return h, nil
}

// byteOrder is a [pflag.Value] that names a [binary.ByteOrder].
// The zero value means "use the default".
type byteOrder struct {
	order binary.ByteOrder
}

var _ pflag.Value = (*byteOrder)(nil)

func (b *byteOrder) Type() string { return "little|big" }

func (b *byteOrder) String() string {
	switch b.order {
	case binary.LittleEndian:
		return "little"
	case binary.BigEndian:
		return "big"
	default:
		return ""
	}
}

func (b *byteOrder) Get() any { return b.order }

func (b *byteOrder) Set(s string) error {
	switch s {
	case "little":
		b.order = binary.LittleEndian
	case "big":
		b.order = binary.BigEndian
	default:
		return fmt.Errorf("unknown byte order %q (must be \"little\" or \"big\")", s)
	}
	return nil
}
