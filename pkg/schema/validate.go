// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package schema validates the JSON artifacts that leave the process:
// the serialized topology handed to the external HLS printer and the
// bus-format descriptor table.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Xilinx/nanotube-sub001/pkg/log"
)

type Kind int

const (
	Topology Kind = iota + 1
	BusFormats
)

//go:embed schemas/*
var schemaFiles embed.FS

func Load(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	f := strings.TrimPrefix(u.Host+u.Path, "/")
	return schemaFiles.Open(f)
}

func init() {
	jsonschema.Loaders["embedfs"] = Load
}

func Validate(k Kind, r io.Reader) (err error) {
	var s *jsonschema.Schema

	switch k {
	case Topology:
		s, err = jsonschema.Compile("embedFS://schemas/topology.schema.json")
	case BusFormats:
		s, err = jsonschema.Compile("embedFS://schemas/busformat.schema.json")
	default:
		return fmt.Errorf("unknown schema kind")
	}

	if err != nil {
		return err
	}

	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		log.Errorf("schema.Validate() - Failed to decode %v", err)
		return err
	}

	if err = s.Validate(v); err != nil {
		return fmt.Errorf("%#v", err)
	}

	return nil
}
