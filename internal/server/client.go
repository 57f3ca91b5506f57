package server

// ClientScript is served at /livereload.js. Stylesheet events re-fetch matching
// <link> elements with a cache-busting query; every other event reloads the page.
const ClientScript = `(() => {
  if (window.__ASSETPIPE_LR__) return;
  window.__ASSETPIPE_LR__ = true;
  function swapCSS(paths) {
    const links = Array.from(document.querySelectorAll('link[rel="stylesheet"]'));
    let swapped = 0;
    for (const link of links) {
      const url = new URL(link.href, location.href);
      if (paths.length && !paths.some((p) => url.pathname.endsWith('/' + p))) continue;
      url.searchParams.set('_lr', Date.now());
      link.href = url.toString();
      swapped++;
    }
    return swapped > 0;
  }
  function connect() {
    const es = new EventSource('/livereload');
    es.onmessage = (e) => {
      let ev;
      try { ev = JSON.parse(e.data); } catch (_) { return; }
      if (ev.kind === 'css' && swapCSS(ev.paths || [])) return;
      location.reload();
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`
