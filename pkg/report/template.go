package report

const tpl = `
<!DOCTYPE html>
<html>
 <head>
  <meta charset="UTF-8">
  <title>Query Plan Comparison Report</title>
 </head>
 <body>
  <h1>Query Plan Comparison Report</h1>
  <h2>Query:</h2>
  <pre>{{ .Query }}</pre>
  <h2>Task Information:</h2>
  {{ range .TaskInfoItems }}
  <b>{{ index . 0 }} : </b>{{ index . 1 }}<br>
  {{ end }}
  <h2>Plans:</h2>
  {{ range .Plans }}
  <h3>{{ .Label }}</h3>
  {{ range .Labels }}
  <b>{{ index . 0 }} : </b>{{ index . 1 }}<br>
  {{ end }}
  <pre>{{ .Text }}</pre>
  {{ end }}
  <h2>Distinct Plans:</h2>
  <table>
   <tr>
    <th>Group</th>
    <th>Labels</th>
   </tr>
   {{ range $i, $g := .Groups }}
   <tr>
    <td>{{ $i }}</td>
    <td>{{ $g.Labels }}</td>
   </tr>
   {{ end }}
  </table>
  <h2>Pairwise Similarity:</h2>
  <table>
   <tr>
    {{ range .Matrix.ColHeader }}
    <th>{{ . }}</th>
    {{ end }}
   </tr>
   {{ range $i, $row := .Matrix.Data }}
   <tr>
    <th>{{ index $.Matrix.RowHeader $i }}</th>
    {{ range $row }}
    <td>{{ . }}</td>
    {{ end }}
   </tr>
   {{ end }}
  </table>
  <h2>Details:</h2>
  {{ range .Details }}
  <h3>{{ .Header }}</h3>
  {{ range .Labels }}
  <b>{{ index . 0 }} : </b>{{ index . 1 }}<br>
  {{ end }}
  {{ if .Changes.Data }}
  Changed operators:<br>
  <table>
   <tr>
    {{ range .Changes.Header }}
    <th>{{ . }}</th>
    {{ end }}
   </tr>
   {{ range .Changes.Data }}
   <tr>
    {{ range . }}
    <td>{{ . }}</td>
    {{ end }}
   </tr>
   {{ end }}
  </table>
  {{ end }}
  {{ if .Inserted }}
  Only in the second plan:<br>
  <ul>
   {{ range .Inserted }}
   <li>{{ . }}</li>
   {{ end }}
  </ul>
  {{ end }}
  {{ if .Deleted }}
  Only in the first plan:<br>
  <ul>
   {{ range .Deleted }}
   <li>{{ . }}</li>
   {{ end }}
  </ul>
  {{ end }}
  {{ end }}
 </body>
</html>`
