package browser

// watchScript installs the page-side observers. Mutations are coalesced so
// a burst of DOM writes costs one binding call.
const watchScript = `(name) => {
	if (window.__mailShieldStop) window.__mailShieldStop();
	const send = (kind) => { try { window[name](kind); } catch (e) {} };

	let queued = false;
	const observer = new MutationObserver(() => {
		if (queued) return;
		queued = true;
		setTimeout(() => { queued = false; send("mutation"); }, 25);
	});
	observer.observe(document, { childList: true, subtree: true, characterData: true });

	const onVisibility = () => send(document.hidden ? "hidden" : "visible");
	const onPageHide = () => send("unloading");
	document.addEventListener("visibilitychange", onVisibility);
	window.addEventListener("pagehide", onPageHide);

	window.__mailShieldStop = () => {
		observer.disconnect();
		document.removeEventListener("visibilitychange", onVisibility);
		window.removeEventListener("pagehide", onPageHide);
		delete window.__mailShieldStop;
	};
}`

const unwatchScript = `() => { if (window.__mailShieldStop) window.__mailShieldStop(); }`

// snapshotScript returns null when no message body is rendered
const snapshotScript = `(bodySel, subjectSel, senderSel) => {
	const body = document.querySelector(bodySel);
	if (!body) return null;
	const text = (el) => (el ? (el.innerText || el.textContent || "") : "");
	const subject = document.querySelector(subjectSel);
	const sender = document.querySelector(senderSel);
	return {
		subject: text(subject),
		sender: sender ? (sender.getAttribute("email") || text(sender)) : "",
		body: text(body),
	};
}`

const aliveScript = `() => true`
