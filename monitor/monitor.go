package monitor

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

const monitorPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Peer Review Monitor</title>
  <style>
    body { background: #0f0f0f; color: #e0e0e0; font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; padding: 20px; }
    .container { max-width: 1200px; margin: 0 auto; }
    .card { background: rgba(255, 255, 255, 0.05); border: 1px solid rgba(255, 255, 255, 0.1); border-radius: 16px; padding: 1.5rem; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
    th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid rgba(255, 255, 255, 0.08); }
    td.value { text-align: right; font-family: 'Monaco', 'Consolas', monospace; }
    #logs { background: rgba(0, 0, 0, 0.3); padding: 1rem; border-radius: 12px; max-height: 400px; overflow-y: auto; white-space: pre-wrap; font-family: 'Monaco', 'Consolas', monospace; font-size: 0.8rem; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Peer Review Monitor</h1>
    <div class="card"><div id="status">Status: Checking...</div></div>
    <div class="card">
      <h2>Counters</h2>
      <table><thead><tr><th>Name</th><th>Description</th><th>Value</th></tr></thead><tbody id="counters"></tbody></table>
    </div>
    <div class="card">
      <h2>Logs</h2>
      <pre id="logs">Loading logs...</pre>
    </div>
  </div>
  <script>
    const token = new URLSearchParams(window.location.search).get('token') || '';

    function fetchStatus() {
      fetch('/api/v1/health')
        .then(res => res.json())
        .then(data => { document.getElementById('status').textContent = 'Status: ' + (data.status === 'ok' ? 'Online' : 'Offline'); })
        .catch(() => { document.getElementById('status').textContent = 'Status: Offline'; });
    }

    function fetchCounters() {
      fetch('/api/v1/counters')
        .then(res => res.json())
        .then(data => {
          const body = document.getElementById('counters');
          body.innerHTML = '';
          (data.counters || []).forEach(c => {
            const row = document.createElement('tr');
            [c.name, c.description || '', String(c.value)].forEach((text, i) => {
              const cell = document.createElement('td');
              cell.textContent = text;
              if (i === 2) cell.className = 'value';
              row.appendChild(cell);
            });
            body.appendChild(row);
          });
        });
    }

    function fetchLogs() {
      fetch('/logs?token=' + encodeURIComponent(token))
        .then(res => res.text())
        .then(data => {
          const logs = document.getElementById('logs');
          logs.textContent = data;
          logs.scrollTop = logs.scrollHeight;
        });
    }

    fetchStatus();
    fetchCounters();
    fetchLogs();
    setInterval(fetchStatus, 5000);
    setInterval(fetchCounters, 5000);
    setInterval(fetchLogs, 5000);
  </script>
</body>
</html>`

func RegisterMonitorPage(router *gin.Engine) {
	router.GET("/monitor", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(monitorPage))
	})
}

// RegisterLogsRoute serves the log file at logPath to callers presenting
// MONITOR_TOKEN. The route is not registered when the token is unset.
func RegisterLogsRoute(router *gin.Engine, logPath string) {
	token := os.Getenv("MONITOR_TOKEN")
	if token == "" {
		return
	}
	router.GET("/logs", func(c *gin.Context) {
		if c.Query("token") != token {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		logData, err := os.ReadFile(logPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", logData)
	})
}
