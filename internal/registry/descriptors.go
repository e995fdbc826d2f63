package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openmanus/manus/pkg/models"
)

// descriptorFile is the on-disk shape of an agents.yaml override file.
type descriptorFile struct {
	Agents []models.AgentInfo `yaml:"agents"`
}

// LoadDescriptors reads agent capability descriptors from a YAML file.
// The file shape is:
//
//	agents:
//	  - id: research-1
//	    name: Research Agent
//	    max_concurrency: 2
//	    descriptor:
//	      weights:
//	        research: 1.0
func LoadDescriptors(path string) ([]models.AgentInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptors: %w", err)
	}

	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse descriptors: %w", err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("descriptors file %s declares no agents", path)
	}

	for _, info := range file.Agents {
		if err := info.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Agents, nil
}

// DefaultDescriptors returns the built-in agent set: one specialist per
// capability tag, with the research agent doubling as the general-purpose
// fallback.
func DefaultDescriptors(maxConcurrency int) []models.AgentInfo {
	if maxConcurrency < 1 {
		maxConcurrency = 2
	}
	return []models.AgentInfo{
		{
			ID:   "research",
			Name: "Research Agent",
			Descriptor: models.CapabilityDescriptor{Weights: map[models.CapabilityTag]float64{
				models.CapResearch: 1.0,
			}},
			MaxConcurrency: maxConcurrency,
		},
		{
			ID:   "coding",
			Name: "Coding Agent",
			Descriptor: models.CapabilityDescriptor{Weights: map[models.CapabilityTag]float64{
				models.CapCodeGeneration: 1.0,
				models.CapResearch:       0.3,
			}},
			MaxConcurrency: maxConcurrency,
		},
		{
			ID:   "stock-screener",
			Name: "Stock Screener Agent",
			Descriptor: models.CapabilityDescriptor{Weights: map[models.CapabilityTag]float64{
				models.CapStockScreening: 1.0,
			}},
			MaxConcurrency: maxConcurrency,
		},
		{
			ID:   "technical-analysis",
			Name: "Technical Analysis Agent",
			Descriptor: models.CapabilityDescriptor{Weights: map[models.CapabilityTag]float64{
				models.CapTechnicalAnalysis: 1.0,
			}},
			MaxConcurrency: maxConcurrency,
		},
		{
			ID:   "fundamental-analysis",
			Name: "Fundamental Analysis Agent",
			Descriptor: models.CapabilityDescriptor{Weights: map[models.CapabilityTag]float64{
				models.CapFundamentalAnalysis: 1.0,
			}},
			MaxConcurrency: maxConcurrency,
		},
	}
}
