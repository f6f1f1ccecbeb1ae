package document

// Palette is the speaker colour cycle. Speaker n uses Palette[n mod len].
var Palette = []string{"red", "blue", "green", "orange", "magenta", "cyan"}

// Footer is the attribution line closing every document
const Footer = "Interactive script generated by scripter, powered by Deepgram and LibreTranslate."

const pageTemplate = `<!DOCTYPE html>
<html lang="{{ .Source }}">
<head>
<meta charset="utf-8">
<title>{{ .Title | default (base .AudioPath) }}</title>
<style>
body { font-family: sans-serif; max-width: 50em; margin: 2em auto; line-height: 1.5; }
#dialog { width: 100%; }
ol.script li { cursor: pointer; margin: 0.3em 0; }
ol.script li:hover { background: #eee; }
ul.legend { list-style: none; padding: 0; }
ul.legend li { display: inline-block; margin-right: 1em; }
footer { margin-top: 2em; font-size: small; color: gray; }
{{- range $i, $color := .Palette }}
.speaker{{ $i }} { color: {{ $color }}; }
{{- end }}
</style>
</head>
<body>
<h1>{{ .Title | default (base .AudioPath) }}</h1>
<p>{{ .Source | upper }} &rarr; {{ .Target | upper }}, {{ len .Lines }} {{ if eq (len .Lines) 1 }}phrase{{ else }}phrases{{ end }}</p>
<audio id="dialog" controls>
<source src="{{ .AudioPath }}" type="{{ .SourceType }}">
</audio>
<ul class="legend">
{{- range .Legend }}
<li class="{{ .Class }}">Speaker {{ .Speaker }}</li>
{{- end }}
</ul>
<ol class="script">
{{- range .Lines }}
<li class="{{ .Class }}" data-speaker="{{ .Speaker }}" onclick="{{ .OnClick }}" title="{{ .Translation }}">{{ .Text }}</li>
{{- end }}
</ol>
<footer>{{ .Footer }}</footer>
<script>
var margin = {{ .Margin }};
var dialog = document.getElementById("dialog");
var playing = false;
function play(start, end) {
  if (playing) {
    return;
  }
  playing = true;
  dialog.currentTime = Math.max(0, start - margin);
  dialog.play();
  setTimeout(function () {
    dialog.pause();
    playing = false;
  }, (end - start + 2 * margin) * 1000);
}
</script>
</body>
</html>
`
