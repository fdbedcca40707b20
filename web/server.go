package web

import (
	"log"
	"net/http"
	"os"
	"path"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mogaika/md5_browser/status"
	"github.com/mogaika/md5_browser/vfs"
)

var ServerDirectory vfs.Directory

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func HandlerStatusWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] websocket upgrade error: %v", err)
		return
	}
	status.NewClient(conn)
}

func NewRouter(d vfs.Directory, webPath string) *mux.Router {
	ServerDirectory = d

	r := mux.NewRouter()
	r.HandleFunc("/action/play/{instance}/{frame}/{format}", HandlerActionPlay).Methods("GET")
	r.HandleFunc("/action/{file}/{action}", HandlerActionPackFile).Methods("GET")
	r.HandleFunc("/json/play/{mesh}/{anim}", HandlerAjaxPlayCreate).Methods("POST")
	r.HandleFunc("/json/play/{instance}/{frame}", HandlerAjaxPlayFrame).Methods("GET")
	r.HandleFunc("/json/play/{instance}", HandlerAjaxPlayRelease).Methods("DELETE")
	r.HandleFunc("/json/pack/{file}", HandlerAjaxPackFile).Methods("GET")
	r.HandleFunc("/json/pack", HandlerAjaxPack).Methods("GET")
	r.HandleFunc("/dump/pack/{file}", HandlerDumpPackFile).Methods("GET")
	r.HandleFunc("/upload/pack/{file}", HandlerUploadPackFile).Methods("POST")
	r.HandleFunc("/ws/status", HandlerStatusWebsocket)

	if webPath != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(path.Join(webPath, "data"))))
	}
	return r
}

func StartServer(addr string, d vfs.Directory, webPath string) error {
	r := NewRouter(d, webPath)

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
