package api

import (
	"net/http"
)

const operatorUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>PatternHunt - Operator UI</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: monospace;
            background: #1a1a2e;
            color: #eee;
            height: 100vh;
            display: flex;
            flex-direction: column;
        }
        header {
            background: #16213e;
            padding: 12px 20px;
            border-bottom: 1px solid #0f3460;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }
        header h1 { font-size: 16px; font-weight: normal; }
        #conn {
            padding: 4px 10px;
            border-radius: 4px;
            font-size: 12px;
        }
        #conn.connected { background: #1b4332; color: #95d5b2; }
        #conn.disconnected { background: #7f1d1d; color: #fca5a5; }
        #conn.connecting { background: #78350f; color: #fcd34d; }
        main { flex: 1; overflow: hidden; display: flex; }
        #left {
            width: 340px;
            padding: 14px;
            border-right: 1px solid #0f3460;
            display: flex;
            flex-direction: column;
            gap: 14px;
            overflow-y: auto;
        }
        section {
            background: #16213e;
            border-radius: 4px;
            padding: 12px;
        }
        section h2 { font-size: 13px; margin-bottom: 8px; color: #8899bb; }
        #stats div { font-size: 13px; padding: 2px 0; }
        #stats span.v { color: #95d5b2; float: right; }
        select, button {
            font-family: monospace;
            font-size: 13px;
            padding: 6px 10px;
            border-radius: 4px;
            border: 1px solid #0f3460;
            background: #1a1a2e;
            color: #eee;
        }
        select { width: 100%; margin-bottom: 8px; }
        button { cursor: pointer; margin-right: 6px; }
        button:disabled { opacity: 0.4; cursor: default; }
        button.start { background: #1b4332; }
        button.stop { background: #7f1d1d; }
        #matches { font-size: 12px; }
        #matches .match {
            padding: 6px 8px;
            margin-bottom: 4px;
            background: #1a1a2e;
            border-left: 3px solid #1b4332;
            border-radius: 3px;
        }
        #matches .match.selftest { border-left-color: #78350f; }
        #matches a { color: #95d5b2; }
        #right { flex: 1; display: flex; flex-direction: column; overflow: hidden; }
        #events {
            flex: 1;
            overflow-y: auto;
            padding: 10px;
        }
        .event {
            padding: 6px 10px;
            margin-bottom: 4px;
            background: #16213e;
            border-radius: 4px;
            border-left: 3px solid #0f3460;
            font-size: 12px;
            display: flex;
            gap: 10px;
            align-items: baseline;
        }
        .event.error { border-left-color: #7f1d1d; }
        .event.warning { border-left-color: #78350f; }
        .event .ts { color: #667; white-space: nowrap; }
        .event .name { color: #95d5b2; white-space: nowrap; }
        .event .fields { color: #99a; overflow-wrap: anywhere; }
    </style>
</head>
<body>
    <header>
        <h1>PatternHunt</h1>
        <div id="conn" class="connecting">connecting</div>
    </header>
    <main>
        <div id="left">
            <section>
                <h2>SESSION</h2>
                <div id="stats">
                    <div>running <span class="v" id="st-running">-</span></div>
                    <div>pattern <span class="v" id="st-pattern">-</span></div>
                    <div>searched <span class="v" id="st-searched">-</span></div>
                    <div>matches <span class="v" id="st-matches">-</span></div>
                    <div>workers <span class="v" id="st-workers">-</span></div>
                    <div>queue <span class="v" id="st-queue">-</span></div>
                    <div>self-test <span class="v" id="st-selftest">-</span></div>
                </div>
            </section>
            <section>
                <h2>CONTROL</h2>
                <select id="pattern"></select>
                <div>
                    <button class="start" id="btn-start">start</button>
                    <button class="stop" id="btn-stop">stop</button>
                </div>
            </section>
            <section>
                <h2>MATCHES</h2>
                <div id="matches"></div>
            </section>
        </div>
        <div id="right">
            <div id="events"></div>
        </div>
    </main>
    <script>
        const conn = document.getElementById('conn');
        const eventsEl = document.getElementById('events');
        const patternSel = document.getElementById('pattern');
        const maxEvents = 300;

        function setConn(state) {
            conn.className = state;
            conn.textContent = state;
        }

        function appendEvent(e) {
            const div = document.createElement('div');
            div.className = 'event ' + (e.level || '');
            const ts = document.createElement('span');
            ts.className = 'ts';
            ts.textContent = (e.ts || '').replace('T', ' ').slice(0, 19);
            const name = document.createElement('span');
            name.className = 'name';
            name.textContent = e.event;
            const fields = document.createElement('span');
            fields.className = 'fields';
            fields.textContent = (e.msg ? e.msg + ' ' : '') +
                (e.fields ? JSON.stringify(e.fields) : '');
            div.append(ts, name, fields);
            eventsEl.appendChild(div);
            while (eventsEl.childNodes.length > maxEvents) {
                eventsEl.removeChild(eventsEl.firstChild);
            }
            eventsEl.scrollTop = eventsEl.scrollHeight;
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/ws/events');
            setConn('connecting');
            ws.onopen = () => setConn('connected');
            ws.onmessage = (m) => {
                try { appendEvent(JSON.parse(m.data)); } catch (e) {}
            };
            ws.onclose = () => {
                setConn('disconnected');
                setTimeout(connect, 2000);
            };
        }

        function refreshStatus() {
            fetch('/status').then(r => r.json()).then(st => {
                document.getElementById('st-running').textContent = st.running ? 'yes' : 'no';
                document.getElementById('st-pattern').textContent = st.pattern || '-';
                document.getElementById('st-searched').textContent = st.searched_count;
                document.getElementById('st-matches').textContent = st.match_count;
                document.getElementById('st-workers').textContent =
                    st.active_workers + ' (' + st.idle_workers + ' idle)';
                document.getElementById('st-queue').textContent = st.queue_length;
                document.getElementById('st-selftest').textContent = st.self_test_done ? 'done' : '-';
            }).catch(() => {});
        }

        function refreshMatches() {
            fetch('/matches?limit=20').then(r => r.json()).then(list => {
                const box = document.getElementById('matches');
                box.innerHTML = '';
                for (const m of list) {
                    const div = document.createElement('div');
                    div.className = 'match' + (m.is_self_test ? ' selftest' : '');
                    const loc = '(' + m.location.x + ',' + m.location.y + ')';
                    div.innerHTML = '<div>' + m.pattern + ' @ ' + loc + '</div>' +
                        '<div>' + m.payload + '</div>' +
                        (m.artifact ? '<a href="/artifacts/' + m.artifact + '" target="_blank">artifact</a>' : '');
                    box.appendChild(div);
                }
            }).catch(() => {});
        }

        function refreshPatterns() {
            fetch('/patterns').then(r => r.json()).then(names => {
                const cur = patternSel.value;
                patternSel.innerHTML = '';
                for (const n of names) {
                    const opt = document.createElement('option');
                    opt.value = n;
                    opt.textContent = n;
                    patternSel.appendChild(opt);
                }
                if (cur) patternSel.value = cur;
            }).catch(() => {});
        }

        document.getElementById('btn-start').onclick = () => {
            const pattern = patternSel.value;
            const doStart = () => fetch('/search/start', { method: 'POST' })
                .then(() => { refreshStatus(); refreshMatches(); });
            if (pattern) {
                fetch('/pattern/select', {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: JSON.stringify({ pattern })
                }).then(doStart);
            } else {
                doStart();
            }
        };

        document.getElementById('btn-stop').onclick = () => {
            fetch('/search/stop', { method: 'POST' }).then(refreshStatus);
        };

        connect();
        refreshPatterns();
        refreshStatus();
        refreshMatches();
        setInterval(refreshStatus, 2000);
        setInterval(refreshMatches, 5000);
    </script>
</body>
</html>`

// uiHandler serves the operator UI HTML page.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(operatorUIHTML))
}
