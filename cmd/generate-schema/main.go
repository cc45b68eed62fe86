package main

import (
	"flag"
	"os"

	"github.com/m-lab/go/cloud/bqx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/iperfx/pkg/results"

	"cloud.google.com/go/bigquery"
)

var resultSchema string

func init() {
	flag.StringVar(&resultSchema, "result", "/var/spool/datatypes/iperfx.json", "filename to write the run result schema")
}

func main() {
	flag.Parse()
	// Generate and save the run result schema for autoloading. The bulky
	// stream and report bodies are excluded by their bigquery tags, matching
	// what result_metadata.json contains.
	sch, err := bigquery.InferSchema(results.RunResult{})
	rtx.Must(err, "failed to generate run result schema")
	sch = bqx.RemoveRequired(sch)
	b, err := sch.ToJSONFields()
	rtx.Must(err, "failed to marshal run result schema")
	err = os.WriteFile(resultSchema, b, 0o644)
	rtx.Must(err, "failed to write run result schema")
}
