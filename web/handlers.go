package web

import (
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack"
	"github.com/mogaika/md5_browser/status"
	"github.com/mogaika/md5_browser/vfs"
	"github.com/mogaika/md5_browser/webutils"
)

func HandlerAjaxPack(w http.ResponseWriter, r *http.Request) {
	if files, err := vfs.ListExtensions(ServerDirectory, pack.HandledExtensions()); err != nil {
		webutils.WriteError(w, err)
	} else {
		webutils.WriteJson(w, files)
	}
}

func HandlerAjaxPackFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := pack.GetInstanceHandler(ServerDirectory, file)
	if err != nil {
		log.Printf("[web] Error getting file from pack: %v", err)
		webutils.WriteError(w, err)
		return
	}
	if m, ok := data.(pack.Marshaler); ok {
		if data, err = m.Marshal(); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to marshal %s", file))
			return
		}
	}
	webutils.WriteJson(w, data)
}

func HandlerDumpPackFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	f, err := vfs.DirectoryGetFile(ServerDirectory, file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	reader, err := vfs.OpenFileAndGetReader(f, true)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	defer f.Close()
	webutils.WriteFile(w, reader, file)
}

func HandlerActionPackFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	action := mux.Vars(r)["action"]

	f, err := vfs.DirectoryGetFile(ServerDirectory, file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	data, err := pack.GetInstanceHandler(ServerDirectory, file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	actioner, ok := data.(pack.HttpActioner)
	if !ok {
		webutils.WriteError(w, errors.Errorf("File %s has no actions", file))
		return
	}
	if err := actioner.HttpAction(pack.NewPackResSrc(ServerDirectory, f), w, r, action); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Action %q on %s", action, file))
	}
}

func HandlerUploadPackFile(w http.ResponseWriter, r *http.Request) {
	targetFile := mux.Vars(r)["file"]
	fileStream, _, err := r.FormFile("data")
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "File stream getting error"))
		return
	}
	defer fileStream.Close()

	fileSize, err := fileStream.Seek(0, os.SEEK_END)
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Cannot seek file"))
		return
	}
	fileStream.Seek(0, os.SEEK_SET)

	f, err := vfs.DirectoryGetFile(ServerDirectory, targetFile)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	if err := vfs.OpenFileAndCopy(f, io.NewSectionReader(fileStream, 0, fileSize)); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Error when updating pack file"))
		return
	}
	status.Info("Updated %s", targetFile)
	webutils.WriteJson(w, map[string]string{"file": targetFile})
}
