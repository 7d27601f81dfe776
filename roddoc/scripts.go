package roddoc

// factsJS gathers dom.NodeFacts for `this` in one round trip. It returns a
// JSON string so the whole structure crosses CDP by value.
const factsJS = `() => {
	const node = this;
	const isElement = node.nodeType === 1;
	const doc = node.nodeType === 9 ? node : node.ownerDocument;
	const ids = isElement ? (node.getAttribute("aria-labelledby") || "").split(/\s+/).filter(Boolean) : [];
	const out = {
		tag: isElement ? node.localName : node.nodeName.toLowerCase(),
		computed_name: "",
		computed_name_supported: false,
		labelled_by: ids,
		labelled_by_resolves: ids.some((id) => doc && doc.getElementById(id) !== null),
		aria_label: isElement ? (node.getAttribute("aria-label") || "") : "",
		labels: Array.from(node.labels || []).map((l) => ({ text: l.textContent || "", controls: l.control === node })),
		text_content: node.nodeType === 9 ? "" : (node.textContent || ""),
		visibility_hidden: false,
		rect: { top: 0, bottom: 0, width: 0, height: 0 },
	};
	if (isElement) {
		const style = getComputedStyle(node);
		out.visibility_hidden = style.visibility === "hidden" || style.visibility === "collapse";
		const r = node.getBoundingClientRect();
		out.rect = { top: r.top, bottom: r.bottom, width: r.width, height: r.height };
		if (typeof node.computedName === "string") {
			out.computed_name = node.computedName;
			out.computed_name_supported = true;
		}
	}
	return JSON.stringify(out);
}`

const queryAllJS = `(selector) => Array.from(this.querySelectorAll(selector))`

const isFrameJS = `() => this.nodeType === 1 && (this.localName === "iframe" || this.localName === "frame")`

const contentDocumentJS = `() => this.contentDocument`

const documentJS = `() => document`

const matchesJS = `(selector) => this.nodeType === 1 && this.matches(selector)`

const focusedJS = `() => {
	const doc = this.ownerDocument;
	return !!doc && doc.activeElement === this;
}`

const sameNodeJS = `(other) => this === other`

const outerHTMLJS = `() => this.nodeType === 9 ? this.documentElement.outerHTML : (this.outerHTML || this.textContent || "")`
