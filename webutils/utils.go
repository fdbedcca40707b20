package webutils

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/md5_browser/utils"
)

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) {
	WriteFileHeaders(w, name)
	io.Copy(w, in)
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, err)
	} else {
		WriteResult(w, res)
	}
}

func WriteJsonFile(w http.ResponseWriter, v interface{}, fileName string) {
	if data, err := json.MarshalIndent(v, "", "  "); err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal"))
	} else {
		WriteFile(w, bytes.NewReader(data), fileName+".json")
	}
}

func WriteYamlFile(w http.ResponseWriter, v interface{}, fileName string) {
	var buffer bytes.Buffer
	enc := yaml.NewEncoder(&buffer)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal yaml"))
		return
	}
	if err := enc.Close(); err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to close yaml encoder"))
		return
	}

	WriteFile(w, &buffer, fileName+".yaml")
}

// WriteSpew writes a go-spew dump of v as plain text
func WriteSpew(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	WriteResult(w, []byte(utils.SDump(v)))
}

func WriteResult(w http.ResponseWriter, data []byte) {
	_, err := w.Write(data)
	if err != nil {
		log.Printf("Error when writing response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr == nil {
		w.Header().Set("Content-Type", "application/json")
		log.Printf("HERR: %v", string(data))
		WriteResult(w, data)
	} else {
		log.Printf("Error marshaling error '%v': %v", err, merr)
	}
}
