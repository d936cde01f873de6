package server

// indexHTML is the bundled editor page. It shows /frame.png, forwards
// pointer, touch and wheel input over /ws and refreshes the frame on every
// state message.
const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>wavecue</title>
<style>
  body { font-family: system-ui, sans-serif; background: #111; color: #ddd; margin: 2rem; }
  #wave { display: block; width: 800px; height: 80px; cursor: pointer; touch-action: none; image-rendering: pixelated; }
  .row { margin-top: .75rem; display: flex; gap: .5rem; align-items: center; flex-wrap: wrap; }
  button { background: #222; color: #ddd; border: 1px solid #444; padding: .25rem .6rem; }
  #err { color: #f66; min-height: 1.2em; }
  input { background: #222; color: #ddd; border: 1px solid #444; padding: .25rem; width: 7rem; }
</style>
</head>
<body>
<img id="wave" src="/frame.png" alt="waveform" draggable="false">
<div class="row">
  <button data-ev="zoom-out">&minus;</button>
  <span id="zoom">1x</span>
  <button data-ev="zoom-in">+</button>
  <button data-ev="focus-marker">Focus marker</button>
  <button data-ev="toggle" id="play">Play</button>
  <button data-ev="set-marker">Set marker</button>
  <span id="nudges"></span>
</div>
<div class="row">
  <span>Start</span>
  <input id="entry" placeholder="m:ss.mmm">
  <span id="pos"></span>
</div>
<div class="row"><input type="file" id="file" accept="audio/*"></div>
<div id="err"></div>
<script>
const wave = document.getElementById("wave");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
const send = (ev) => ws.readyState === WebSocket.OPEN && ws.send(JSON.stringify(ev));
const fmt = (s) => {
  const m = Math.floor(s / 60), r = s - m * 60;
  return m + ":" + r.toFixed(3).padStart(6, "0");
};
const local = (e) => {
  const b = wave.getBoundingClientRect();
  return { x: (e.clientX - b.left) * 800 / b.width, y: (e.clientY - b.top) * 80 / b.height };
};

let nudgeMenu = "";
let frameReq = 0;
ws.onmessage = (m) => {
  const msg = JSON.parse(m.data);
  if (msg.type === "state") {
    const st = msg.state;
    document.getElementById("zoom").textContent = st.zoom_level + "x";
    document.getElementById("play").textContent = st.paused ? "Play" : "Pause";
    document.getElementById("pos").textContent = fmt(st.playhead) + " / " + fmt(st.duration);
    document.getElementById("err").textContent = st.error || "";
    if (document.activeElement !== entry) entry.value = fmt(st.marker);
    const menu = st.nudge_ms.join(",");
    if (menu !== nudgeMenu) {
      nudgeMenu = menu;
      const box = document.getElementById("nudges");
      box.replaceChildren(...st.nudge_ms.map((ms) => {
        const b = document.createElement("button");
        b.textContent = (ms > 0 ? "+" : "") + ms + "ms";
        b.onclick = () => send({ type: "nudge", ms });
        return b;
      }));
    }
    wave.src = "/frame.png?t=" + (++frameReq);
  } else if (msg.type === "error") {
    document.getElementById("err").textContent = msg.error;
  }
};

wave.addEventListener("pointerdown", (e) => {
  wave.setPointerCapture(e.pointerId);
  const p = local(e);
  send({ type: e.pointerType === "touch" ? "touchstart" : "pointerdown", x: p.x, y: p.y });
});
wave.addEventListener("pointermove", (e) => {
  if (!wave.hasPointerCapture(e.pointerId)) return;
  send({ type: e.pointerType === "touch" ? "touchmove" : "pointermove", x: local(e).x });
});
wave.addEventListener("pointerup", (e) => {
  send({ type: e.pointerType === "touch" ? "touchend" : "pointerup", x: local(e).x });
});
wave.addEventListener("pointercancel", () => send({ type: "cancel" }));
wave.addEventListener("wheel", (e) => {
  e.preventDefault();
  send({ type: "wheel", delta: e.deltaY || e.deltaX });
}, { passive: false });

document.querySelectorAll("button[data-ev]").forEach((b) => {
  b.onclick = () => send({ type: b.dataset.ev });
});

const entry = document.getElementById("entry");
entry.addEventListener("keydown", (e) => {
  if (e.key === "Enter") { send({ type: "time-entry", input: entry.value }); entry.blur(); }
});

document.getElementById("file").addEventListener("change", async (e) => {
  const f = e.target.files[0];
  if (!f) return;
  const res = await fetch("/api/upload", { method: "POST", body: f });
  if (!res.ok) document.getElementById("err").textContent = (await res.json()).error;
});
</script>
</body>
</html>
`
