package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const paginaMaxima = 1000

// Config descreve parâmetros necessários para assinar requisições
// compatíveis com S3.
type Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
	HTTPClient   *http.Client
}

// ClienteS3 implementa Cliente falando o protocolo S3 com assinatura SigV4.
type ClienteS3 struct {
	cfg    Config
	client *http.Client
}

// NovoClienteS3 cria um cliente pronto para operar contra um endpoint S3/R2.
func NovoClienteS3(cfg Config) (*ClienteS3, error) {
	if err := cfg.validar(); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &ClienteS3{cfg: cfg, client: client}, nil
}

// Enviar grava o objeto no bucket. Sem sobrescrever, a gravação usa
// If-None-Match e uma colisão vira ErrConflito.
func (c *ClienteS3) Enviar(ctx context.Context, nome string, dados []byte, contentType string, sobrescrever bool) error {
	if strings.TrimSpace(nome) == "" {
		return errors.New("storage: chave do objeto obrigatória")
	}
	if len(dados) == 0 {
		return errors.New("storage: corpo vazio")
	}

	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	cabecalhos := map[string]string{
		"Content-Type":  contentType,
		"Cache-Control": "public, max-age=31536000",
	}
	if !sobrescrever {
		cabecalhos["If-None-Match"] = "*"
	}

	resp, err := c.requisitar(ctx, http.MethodPut, nome, nil, dados, cabecalhos)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPreconditionFailed || resp.StatusCode == http.StatusConflict {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrConflito, nome)
	}
	return verificarResposta(resp)
}

// Baixar devolve os bytes do objeto.
func (c *ClienteS3) Baixar(ctx context.Context, nome string) ([]byte, error) {
	resp, err := c.requisitar(ctx, http.MethodGet, nome, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrNaoEncontrado, nome)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, lerErro(resp)
	}
	return io.ReadAll(resp.Body)
}

// Remover apaga um objeto. Apagar objeto inexistente não é erro no S3.
func (c *ClienteS3) Remover(ctx context.Context, nome string) error {
	resp, err := c.requisitar(ctx, http.MethodDelete, nome, nil, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return verificarResposta(resp)
}

type loteExclusao struct {
	XMLName xml.Name      `xml:"Delete"`
	Quiet   bool          `xml:"Quiet"`
	Objetos []chaveObjeto `xml:"Object"`
}

type chaveObjeto struct {
	Key string `xml:"Key"`
}

type resultadoExclusao struct {
	XMLName xml.Name `xml:"DeleteResult"`
	Erros   []struct {
		Key     string `xml:"Key"`
		Code    string `xml:"Code"`
		Message string `xml:"Message"`
	} `xml:"Error"`
}

// RemoverLote apaga vários objetos em uma única chamada (?delete).
func (c *ClienteS3) RemoverLote(ctx context.Context, nomes []string) error {
	if len(nomes) == 0 {
		return nil
	}

	lote := loteExclusao{Quiet: true}
	for _, nome := range nomes {
		lote.Objetos = append(lote.Objetos, chaveObjeto{Key: nome})
	}

	corpo, err := xml.Marshal(lote)
	if err != nil {
		return fmt.Errorf("storage: marshal do lote: %w", err)
	}

	soma := md5.Sum(corpo)
	cabecalhos := map[string]string{
		"Content-Type": "application/xml",
		"Content-MD5":  base64.StdEncoding.EncodeToString(soma[:]),
	}

	query := url.Values{"delete": []string{""}}
	resp, err := c.requisitar(ctx, http.MethodPost, "", query, corpo, cabecalhos)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return lerErro(resp)
	}

	var resultado resultadoExclusao
	if err := xml.NewDecoder(resp.Body).Decode(&resultado); err != nil {
		return fmt.Errorf("storage: resposta do lote ilegível: %w", err)
	}
	if len(resultado.Erros) > 0 {
		primeiro := resultado.Erros[0]
		return fmt.Errorf("storage: lote com %d falhas (%s: %s %s)",
			len(resultado.Erros), primeiro.Key, primeiro.Code, primeiro.Message)
	}
	return nil
}

type paginaListagem struct {
	XMLName  xml.Name `xml:"ListBucketResult"`
	Conteudo []struct {
		Key          string    `xml:"Key"`
		Size         int64     `xml:"Size"`
		LastModified time.Time `xml:"LastModified"`
	} `xml:"Contents"`
	Truncada        bool   `xml:"IsTruncated"`
	ProximaPagina   string `xml:"NextContinuationToken"`
	ChavesDevolvida int    `xml:"KeyCount"`
}

// ListarTudo percorre o bucket página a página. Uma página cheia não
// garante mais dados; o laço encerra em qualquer página curta ou sem
// token de continuação.
func (c *ClienteS3) ListarTudo(ctx context.Context, prefixo string) ([]Objeto, error) {
	var objetos []Objeto
	token := ""

	for {
		query := url.Values{
			"list-type": []string{"2"},
			"max-keys":  []string{strconv.Itoa(paginaMaxima)},
		}
		if prefixo != "" {
			query.Set("prefix", prefixo)
		}
		if token != "" {
			query.Set("continuation-token", token)
		}

		resp, err := c.requisitar(ctx, http.MethodGet, "", query, nil, nil)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := lerErro(resp)
			resp.Body.Close()
			return nil, err
		}

		var pagina paginaListagem
		err = xml.NewDecoder(resp.Body).Decode(&pagina)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("storage: listagem ilegível: %w", err)
		}

		for _, item := range pagina.Conteudo {
			objetos = append(objetos, Objeto{
				Nome:         item.Key,
				Bytes:        item.Size,
				AtualizadoEm: item.LastModified,
			})
		}

		if !pagina.Truncada || pagina.ProximaPagina == "" || len(pagina.Conteudo) < paginaMaxima {
			return objetos, nil
		}
		token = pagina.ProximaPagina
	}
}

// URLPublica monta a URL servida ao consumidor final.
func (c *ClienteS3) URLPublica(nome string) string {
	chave := (&url.URL{Path: strings.TrimLeft(nome, "/")}).EscapedPath()
	if strings.TrimSpace(c.cfg.PublicDomain) != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(c.cfg.PublicDomain, "/"), chave)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Bucket, chave)
}

func (c *ClienteS3) requisitar(ctx context.Context, metodo, nome string, query url.Values, corpo []byte, cabecalhos map[string]string) (*http.Response, error) {
	endpoint := strings.TrimRight(c.cfg.Endpoint, "/")
	alvo := fmt.Sprintf("%s/%s", endpoint, c.cfg.Bucket)
	if nome != "" {
		chave := (&url.URL{Path: strings.TrimLeft(nome, "/")}).EscapedPath()
		alvo = fmt.Sprintf("%s/%s", alvo, chave)
	}
	if len(query) > 0 {
		alvo = alvo + "?" + query.Encode()
	}

	var leitor io.Reader
	if len(corpo) > 0 {
		leitor = bytes.NewReader(corpo)
	}

	req, err := http.NewRequestWithContext(ctx, metodo, alvo, leitor)
	if err != nil {
		return nil, err
	}

	somaCorpo := sha256.Sum256(corpo)
	hashCorpo := hex.EncodeToString(somaCorpo[:])

	for chave, valor := range cabecalhos {
		req.Header.Set(chave, valor)
	}
	if len(corpo) > 0 {
		req.ContentLength = int64(len(corpo))
		req.Header.Set("Content-Length", strconv.Itoa(len(corpo)))
	}
	req.Header.Set("x-amz-content-sha256", hashCorpo)

	if err := assinarRequisicao(req, c.cfg, hashCorpo, time.Now().UTC()); err != nil {
		return nil, err
	}

	return c.client.Do(req)
}

func verificarResposta(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return lerErro(resp)
}

func lerErro(resp *http.Response) error {
	corpo, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &ErroHTTP{Status: resp.StatusCode, Corpo: strings.TrimSpace(string(corpo))}
}

func (cfg Config) validar() error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return errors.New("storage: endpoint do S3 ausente")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return errors.New("storage: região do S3 ausente")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return errors.New("storage: bucket ausente")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" {
		return errors.New("storage: access key ausente")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return errors.New("storage: secret key ausente")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return errors.New("storage: endpoint deve incluir protocolo http/https")
	}
	return nil
}

func assinarRequisicao(req *http.Request, cfg Config, hashCorpo string, agora time.Time) error {
	amzDate := agora.UTC().Format("20060102T150405Z")
	dataCurta := agora.UTC().Format("20060102")

	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("Host", req.URL.Host)

	uri := uriCanonica(req.URL.Path)
	query := queryCanonica(req.URL.Query())

	cabecalhos, assinados := cabecalhosCanonicos(req.Header)
	requisicaoCanonica := strings.Join([]string{
		req.Method,
		uri,
		query,
		cabecalhos,
		assinados,
		hashCorpo,
	}, "\n")

	somaCanonica := sha256.Sum256([]byte(requisicaoCanonica))
	hexCanonica := hex.EncodeToString(somaCanonica[:])

	escopo := fmt.Sprintf("%s/%s/s3/aws4_request", dataCurta, cfg.Region)
	textoAssinar := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		escopo,
		hexCanonica,
	}, "\n")

	chave := derivarChave(cfg.SecretKey, dataCurta, cfg.Region, "s3")
	assinatura := hex.EncodeToString(hmacSHA256(chave, []byte(textoAssinar)))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		cfg.AccessKey, escopo, assinados, assinatura,
	))
	return nil
}

func uriCanonica(caminho string) string {
	if caminho == "" {
		return "/"
	}
	if !strings.HasPrefix(caminho, "/") {
		caminho = "/" + caminho
	}
	return codificarURI(caminho, false)
}

func queryCanonica(valores url.Values) string {
	if len(valores) == 0 {
		return ""
	}
	chaves := make([]string, 0, len(valores))
	for chave := range valores {
		chaves = append(chaves, chave)
	}
	sort.Strings(chaves)

	var partes []string
	for _, chave := range chaves {
		vals := valores[chave]
		sort.Strings(vals)
		for _, v := range vals {
			partes = append(partes, fmt.Sprintf("%s=%s", codificarURI(chave, true), codificarURI(v, true)))
		}
	}
	return strings.Join(partes, "&")
}

func cabecalhosCanonicos(h http.Header) (string, string) {
	type cabecalho struct {
		chave string
		valor string
	}

	mesclados := make(map[string][]string)
	for k, vals := range h {
		minusculo := strings.ToLower(k)
		if minusculo == "authorization" {
			continue
		}
		mesclados[minusculo] = append(mesclados[minusculo], vals...)
	}

	if _, ok := mesclados["host"]; !ok {
		mesclados["host"] = []string{h.Get("Host")}
	}

	lista := make([]cabecalho, 0, len(mesclados))
	for k, vals := range mesclados {
		limpos := make([]string, 0, len(vals))
		for _, v := range vals {
			limpos = append(limpos, strings.TrimSpace(v))
		}
		lista = append(lista, cabecalho{chave: k, valor: strings.Join(limpos, ",")})
	}

	sort.Slice(lista, func(i, j int) bool {
		return lista[i].chave < lista[j].chave
	})

	linhas := make([]string, len(lista))
	assinados := make([]string, len(lista))
	for i, item := range lista {
		linhas[i] = fmt.Sprintf("%s:%s", item.chave, item.valor)
		assinados[i] = item.chave
	}

	return strings.Join(linhas, "\n") + "\n", strings.Join(assinados, ";")
}

func codificarURI(entrada string, codificarBarra bool) string {
	var builder strings.Builder
	for i := 0; i < len(entrada); i++ {
		c := entrada[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.' || c == '~' {
			builder.WriteByte(c)
			continue
		}
		if c == '/' && !codificarBarra {
			builder.WriteByte(c)
			continue
		}
		builder.WriteString(fmt.Sprintf("%%%02X", c))
	}
	return builder.String()
}

func derivarChave(segredo, data, regiao, servico string) []byte {
	kData := hmacSHA256([]byte("AWS4"+segredo), []byte(data))
	kRegiao := hmacSHA256(kData, []byte(regiao))
	kServico := hmacSHA256(kRegiao, []byte(servico))
	return hmacSHA256(kServico, []byte("aws4_request"))
}

func hmacSHA256(chave, dados []byte) []byte {
	mac := hmac.New(sha256.New, chave)
	mac.Write(dados)
	return mac.Sum(nil)
}
