// Package pdfconf builds the pdfcpu configurations shared by the reader and
// writer sides of a conversion.
package pdfconf

import (
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableOnce sync.Once

// Relaxed returns a configuration for reading arbitrary input documents.
func Relaxed() *model.Configuration {
	// pdfcpu otherwise creates a config dir under the user's home.
	disableOnce.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Output returns the configuration used to finalize a converted document:
// no object streams and no xref streams, for the widest reader support.
func Output() *model.Configuration {
	conf := Relaxed()
	conf.Cmd = model.OPTIMIZE
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}
