package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xraph/jobhost/job"
)

// DomainsFile is the YAML document describing every domain of a host.
//
//	domains:
//	  - domain: billing
//	    interval: 5m
//	    lease: billing
//	    jobs:
//	      - name: fetch
//	        type: noop
//	      - name: post
//	        type: noop
//	        depends_on: [fetch]
type DomainsFile struct {
	Domains []job.Options `yaml:"domains"`
}

// LoadDomains reads domain definitions from the file at path.
func LoadDomains(path string) ([]job.Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open domains: %w", err)
	}
	defer f.Close()
	return ParseDomains(f)
}

// ParseDomains decodes domain definitions from r. Unknown keys are
// rejected. Graph structure is not checked here.
func ParseDomains(r io.Reader) ([]job.Options, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc DomainsFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: domains file is empty")
		}
		return nil, fmt.Errorf("config: decode domains: %w", err)
	}
	for _, o := range doc.Domains {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return doc.Domains, nil
}
