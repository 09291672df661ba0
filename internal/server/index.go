package server

import "net/http"

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>cdbmap</title>
<style>
body { font-family: sans-serif; margin: 1em; }
#map { width: 800px; height: 600px; border: 1px solid #ccc; }
#status { margin: .5em 0; white-space: pre-wrap; }
</style>
</head>
<body>
<div>
<button data-action="zoom-in">+</button>
<button data-action="zoom-out">-</button>
<button data-action="left">&larr;</button>
<button data-action="up">&uarr;</button>
<button data-action="down">&darr;</button>
<button data-action="right">&rarr;</button>
<button data-action="reload">reload</button>
<button data-action="more">more data</button>
</div>
<div id="status">ON_HOLD</div>
<img id="map" alt="map">
<script>
document.querySelectorAll("button[data-action]").forEach(function (b) {
  b.onclick = function () { fetch("/actions/" + b.dataset.action, {method: "POST"}); };
});
var img = document.getElementById("map");
var status = document.getElementById("status");
var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = function (ev) {
  var st = JSON.parse(ev.data);
  status.textContent = st.status + (st.error ? "\n" + st.error : "") + (st.viewBox ? "  viewBox " + st.viewBox : "");
  img.src = "/map.svg?g=" + st.generation + "&v=" + encodeURIComponent(st.viewBox || "");
};
</script>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}
