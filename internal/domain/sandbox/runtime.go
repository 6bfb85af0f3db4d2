package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/id"
)

// ErrTimeout is returned when a document does not settle in time.
var ErrTimeout = errors.New("execution timeout exceeded")

const errorDisplayID = "error-display"

// Config controls headless execution.
type Config struct {
	Timeout          time.Duration // Wall clock budget per document
	EnableConsole    bool          // Capture console.* output
	EvaluateBabel    bool          // Run text/babel blocks that parse as plain JS
	MaxCallStackSize int
}

// DefaultConfig returns the runtime defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          2 * time.Second,
		EnableConsole:    true,
		EvaluateBabel:    true,
		MaxCallStackSize: 1024,
	}
}

// Resource is an external script the runtime did not fetch.
type Resource struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// SkippedScript is an inline block the runtime could not evaluate.
type SkippedScript struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Result holds one headless execution.
type Result struct {
	Report    Report          `json:"report"`
	Console   []LogEntry      `json:"console"`
	Resources []Resource      `json:"resources"`
	Skipped   []SkippedScript `json:"skipped,omitempty"`
	Changes   []DOMChange     `json:"changes,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// Runtime executes assembled documents in goja against a parsed DOM. Remote
// scripts are never fetched; React and ReactDOM are replaced by a shallow
// stand-in so component code still runs.
type Runtime struct {
	config   Config
	reporter Reporter
	logger   *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewRuntime creates a runtime. reporter receives the outcome of documents
// mounted through Mount or Attach.
func NewRuntime(config Config, reporter Reporter, logger *zap.Logger) *Runtime {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxCallStackSize <= 0 {
		config.MaxCallStackSize = DefaultConfig().MaxCallStackSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		config:   config,
		reporter: reporter,
		logger:   logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// Mount starts executing document in the background under a new token.
func (r *Runtime) Mount(document string) (Handle, error) {
	h := Handle{Token: id.NewMountToken().String(), MountedAt: time.Now()}
	if err := r.Attach(h, document); err != nil {
		return Handle{}, err
	}
	return h, nil
}

// Unmount is Detach.
func (r *Runtime) Unmount(h Handle) {
	r.Detach(h)
}

// Attach executes document under an existing handle. The report is only
// delivered if the handle is still attached when execution ends.
func (r *Runtime) Attach(h Handle, document string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.active[h.Token] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()

		res, err := r.Run(ctx, document)
		if err != nil {
			r.logger.Debug("Headless run ended", zap.String("token", h.Token), zap.Error(err))
		}

		r.mu.Lock()
		_, live := r.active[h.Token]
		delete(r.active, h.Token)
		r.mu.Unlock()

		if !live || res == nil || r.reporter == nil {
			return
		}
		report := res.Report
		report.Token = h.Token
		r.reporter(report)
	}()
	return nil
}

// Detach cancels execution under h and drops its report.
func (r *Runtime) Detach(h Handle) {
	r.mu.Lock()
	cancel, ok := r.active[h.Token]
	delete(r.active, h.Token)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// Active returns the number of attached documents still executing.
func (r *Runtime) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Close cancels everything and waits for running documents to stop.
func (r *Runtime) Close() {
	r.mu.Lock()
	r.closed = true
	for token, cancel := range r.active {
		cancel()
		delete(r.active, token)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Run executes document synchronously and returns what the overlay shows
// once every script and queued render has run.
func (r *Runtime) Run(ctx context.Context, document string) (*Result, error) {
	start := time.Now()

	dom, err := ParseDOM(document)
	if err != nil {
		return nil, err
	}

	x := &execution{
		config:  r.config,
		vm:      goja.New(),
		dom:     dom,
		proxies: make(map[*Element]*goja.Object),
	}
	x.vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	if err := x.setupGlobals(); err != nil {
		return nil, fmt.Errorf("setup globals: %w", err)
	}

	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-timer.C:
			x.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			x.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	runErr := x.runScripts()
	if runErr == nil {
		runErr = x.flushRenders()
	}

	result := &Result{
		Report:    x.report(),
		Console:   x.console,
		Resources: x.resources,
		Skipped:   x.skipped,
		Changes:   dom.Changes(),
		Duration:  time.Since(start),
	}
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

type execution struct {
	config    Config
	vm        *goja.Runtime
	dom       *DOM
	proxies   map[*Element]*goja.Object
	console   []LogEntry
	resources []Resource
	skipped   []SkippedScript
}

func (x *execution) runScripts() error {
	var scripts []*goquery.Selection
	x.dom.Document().Find("script").Each(func(_ int, s *goquery.Selection) {
		scripts = append(scripts, s)
	})

	for i, s := range scripts {
		typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		if src, ok := s.Attr("src"); ok {
			x.resources = append(x.resources, Resource{URL: src, Type: typ})
			continue
		}

		name := "inline-" + strconv.Itoa(i)
		code := s.Text()

		switch typ {
		case "", "text/javascript", "application/javascript":
			if err := x.execute(name, code); err != nil {
				return err
			}
		case "text/babel":
			if !x.config.EvaluateBabel {
				x.skip(i, typ, "babel evaluation disabled")
				continue
			}
			prg, err := goja.Compile(name, code, false)
			if err != nil {
				x.skip(i, typ, "requires transpilation")
				continue
			}
			if err := x.handle(name, func() error {
				_, err := x.vm.RunProgram(prg)
				return err
			}); err != nil {
				return err
			}
		default:
			x.skip(i, typ, "unsupported script type")
		}
	}
	return nil
}

func (x *execution) skip(index int, typ, reason string) {
	x.skipped = append(x.skipped, SkippedScript{Index: index, Type: typ, Reason: reason})
}

func (x *execution) execute(name, code string) error {
	return x.handle(name, func() error {
		_, err := x.vm.RunScript(name, code)
		return err
	})
}

// handle runs fn and routes uncaught exceptions to window.onerror the way a
// browser does. Only interruption is returned.
func (x *execution) handle(source string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok {
			return v
		}
		return ErrTimeout
	}

	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err
	}
	x.logUncaught(source, ex)
	x.uncaught(ex)
	return nil
}

func (x *execution) uncaught(ex *goja.Exception) {
	var line, col int
	if stack := ex.Stack(); len(stack) > 0 {
		pos := stack[0].Position()
		line, col = pos.Line, pos.Column
	}
	message := "Uncaught " + ex.Value().String()

	onerror, ok := goja.AssertFunction(x.vm.Get("onerror"))
	if !ok {
		return
	}
	// Every executed script is inline, and browsers report no source for those.
	if _, err := onerror(goja.Undefined(),
		x.vm.ToValue(message),
		x.vm.ToValue(""),
		x.vm.ToValue(line),
		x.vm.ToValue(col),
		ex.Value(),
	); err != nil {
		x.log("error", "onerror failed: "+err.Error())
	}
}

func (x *execution) logUncaught(source string, ex *goja.Exception) {
	x.log("error", source+": "+ex.Value().String())
}

func (x *execution) flushRenders() error {
	flush, ok := goja.AssertFunction(x.vm.Get("__previewRenders"))
	if !ok {
		return nil
	}
	render, ok := goja.AssertFunction(x.vm.Get("__previewRender"))
	if !ok {
		return nil
	}

	queued, err := flush(goja.Undefined())
	if err != nil {
		return x.handle("render", func() error { return err })
	}
	obj := queued.ToObject(x.vm)
	n := int(obj.Get("length").ToInteger())
	for i := 0; i < n; i++ {
		node := obj.Get(strconv.Itoa(i))
		if err := x.handle("render", func() error {
			_, err := render(goja.Undefined(), node)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) report() Report {
	el := x.dom.ByID(errorDisplayID)
	if el == nil || !el.Displayed() {
		return Report{Console: x.console}
	}
	text := strings.TrimSpace(el.Text())
	return Report{
		Channel: ClassifyOverlay(text),
		Visible: true,
		Text:    text,
		Console: x.console,
	}
}

func (x *execution) log(level, msg string) {
	x.console = append(x.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
}

// setupGlobals configures window, document, console and the React stand-in.
func (x *execution) setupGlobals() error {
	vm := x.vm
	global := vm.GlobalObject()

	vm.Set("window", global)
	vm.Set("self", global)
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, x.makeConsoleFunc(level))
	}
	vm.Set("console", console)

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	zero := func(goja.FunctionCall) goja.Value { return vm.ToValue(0) }
	vm.Set("setTimeout", zero)
	vm.Set("setInterval", zero)
	vm.Set("clearTimeout", noop)
	vm.Set("clearInterval", noop)
	vm.Set("requestAnimationFrame", zero)
	vm.Set("addEventListener", noop)
	vm.Set("removeEventListener", noop)

	vm.Set("document", x.makeDocument())

	_, err := vm.RunScript("preview-prelude", reactPrelude)
	return err
}

func (x *execution) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !x.config.EnableConsole {
			return goja.Undefined()
		}
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		x.log(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (x *execution) makeDocument() *goja.Object {
	vm := x.vm
	doc := vm.NewObject()

	first := func(selector string) goja.Value {
		found := x.dom.Query(selector)
		if len(found) == 0 {
			return goja.Null()
		}
		return x.proxy(found[0])
	}
	all := func(selector string) goja.Value {
		found := x.dom.Query(selector)
		items := make([]interface{}, len(found))
		for i, el := range found {
			items[i] = x.proxy(el)
		}
		return vm.NewArray(items...)
	}

	doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		el := x.dom.ByID(call.Argument(0).String())
		if el == nil {
			return goja.Null()
		}
		return x.proxy(el)
	})
	doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return first(call.Argument(0).String())
	})
	doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return all(call.Argument(0).String())
	})
	doc.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		fields := strings.Fields(call.Argument(0).String())
		if len(fields) == 0 {
			return vm.NewArray()
		}
		return all("." + strings.Join(fields, "."))
	})
	doc.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return all(call.Argument(0).String())
	})
	doc.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return x.proxy(x.dom.NewDetached(call.Argument(0).String()))
	})
	doc.Set("addEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	doc.DefineAccessorProperty("body", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return first("body")
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	doc.DefineAccessorProperty("head", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return first("head")
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return doc
}

// proxy returns the script-side object for el, one per element.
func (x *execution) proxy(el *Element) *goja.Object {
	if o, ok := x.proxies[el]; ok {
		return o
	}
	obj := &elementObject{
		vm:    x.vm,
		el:    el,
		extra: make(map[string]goja.Value),
	}
	obj.style = x.vm.NewDynamicObject(&styleObject{vm: x.vm, el: el})
	noop := x.vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	obj.methods = map[string]goja.Value{
		"getAttribute": x.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return x.vm.ToValue(el.GetAttribute(call.Argument(0).String()))
		}),
		"setAttribute": x.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			el.SetAttribute(call.Argument(0).String(), call.Argument(1).String())
			return goja.Undefined()
		}),
		"appendChild": x.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return call.Argument(0)
		}),
		"addEventListener":    noop,
		"removeEventListener": noop,
	}
	o := x.vm.NewDynamicObject(obj)
	x.proxies[el] = o
	return o
}

type elementObject struct {
	vm      *goja.Runtime
	el      *Element
	style   *goja.Object
	methods map[string]goja.Value
	extra   map[string]goja.Value
}

func (o *elementObject) Get(key string) goja.Value {
	switch key {
	case "tagName", "nodeName":
		return o.vm.ToValue(o.el.TagName)
	case "id":
		return o.vm.ToValue(o.el.ID)
	case "className":
		return o.vm.ToValue(o.el.ClassName)
	case "innerHTML":
		return o.vm.ToValue(o.el.InnerHTML())
	case "innerText", "textContent":
		return o.vm.ToValue(o.el.Text())
	case "style":
		return o.style
	}
	if m, ok := o.methods[key]; ok {
		return m
	}
	return o.extra[key]
}

func (o *elementObject) Set(key string, val goja.Value) bool {
	switch key {
	case "innerHTML":
		o.el.SetInnerHTML(val.String())
	case "innerText", "textContent":
		o.el.SetInnerText(val.String())
	case "id":
		o.el.ID = val.String()
		o.el.SetAttribute("id", o.el.ID)
	case "className":
		o.el.ClassName = val.String()
		o.el.SetAttribute("class", o.el.ClassName)
	case "tagName", "nodeName", "style":
		return false
	default:
		o.extra[key] = val
	}
	return true
}

func (o *elementObject) Has(key string) bool {
	switch key {
	case "tagName", "nodeName", "id", "className", "innerHTML", "innerText", "textContent", "style":
		return true
	}
	if _, ok := o.methods[key]; ok {
		return true
	}
	_, ok := o.extra[key]
	return ok
}

func (o *elementObject) Delete(key string) bool {
	delete(o.extra, key)
	return true
}

func (o *elementObject) Keys() []string {
	keys := []string{"tagName", "id", "className", "innerHTML", "innerText", "style"}
	for k := range o.extra {
		keys = append(keys, k)
	}
	return keys
}

type styleObject struct {
	vm *goja.Runtime
	el *Element
}

func (s *styleObject) Get(key string) goja.Value {
	return s.vm.ToValue(s.el.Style[key])
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	s.el.SetStyle(key, val.String())
	return true
}

func (s *styleObject) Has(key string) bool {
	_, ok := s.el.Style[key]
	return ok
}

func (s *styleObject) Delete(key string) bool {
	delete(s.el.Style, key)
	return true
}

func (s *styleObject) Keys() []string {
	keys := make([]string, 0, len(s.el.Style))
	for k := range s.el.Style {
		keys = append(keys, k)
	}
	return keys
}

// reactPrelude is a shallow React 18 stand-in. Components are called with
// their props and hooks return their initial values; nothing is committed to
// the DOM.
const reactPrelude = `
(function (g) {
  var noop = function () {};
  var pending = [];

  function Component(props) { this.props = props; this.state = {}; }
  Component.prototype.setState = noop;
  Component.prototype.forceUpdate = noop;

  function createElement(type, props) {
    var p = {};
    for (var k in (props || {})) p[k] = props[k];
    var children = Array.prototype.slice.call(arguments, 2);
    if (children.length === 1) p.children = children[0];
    else if (children.length > 1) p.children = children;
    return { type: type, props: p };
  }

  function render(node) {
    if (node === null || typeof node !== 'object') return;
    if (Array.isArray(node)) { for (var i = 0; i < node.length; i++) render(node[i]); return; }
    var t = node.type;
    if (typeof t === 'function') {
      if (t.prototype && typeof t.prototype.render === 'function') {
        render(new t(node.props).render());
      } else {
        render(t(node.props));
      }
      return;
    }
    if (node.props) render(node.props.children);
  }

  function createContext(value) {
    var ctx = { _value: value };
    ctx.Provider = function (props) { ctx._value = props.value; return props.children; };
    ctx.Consumer = function (props) { return props.children(ctx._value); };
    return ctx;
  }

  g.React = {
    createElement: createElement,
    Component: Component,
    PureComponent: Component,
    Fragment: function (props) { return props.children; },
    StrictMode: function (props) { return props.children; },
    createContext: createContext,
    useState: function (v) { return [typeof v === 'function' ? v() : v, noop]; },
    useReducer: function (r, v, init) { return [init ? init(v) : v, noop]; },
    useEffect: noop,
    useLayoutEffect: noop,
    useMemo: function (fn) { return fn(); },
    useCallback: function (fn) { return fn; },
    useRef: function (v) { return { current: v }; },
    useContext: function (ctx) { return ctx && ctx._value; }
  };

  g.ReactDOM = {
    createRoot: function () {
      return { render: function (node) { pending.push(node); }, unmount: noop };
    },
    render: function (node) { pending.push(node); }
  };

  g.__previewRenders = function () { var q = pending; pending = []; return q; };
  g.__previewRender = render;
})(this);
`
