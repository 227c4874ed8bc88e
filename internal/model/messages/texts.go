package messages

const (
	welcomeMessage = "👋 ¡Hola, %s!\n\n" +
		"Soy tu asistente de gastos. Cuéntame en qué gastaste, por texto o con una nota de voz, " +
		"y yo lo registro después de que lo confirmes.\n\n" +
		"Por ejemplo: <i>Gasté 150 en uber</i>\n\n" +
		"Usa /menu para ver las opciones o /ayuda para la lista de comandos."

	helpMessage = "ℹ️ <b>Cómo usarme</b>\n\n" +
		"Escríbeme o mándame un audio con tu gasto, por ejemplo <i>pagué 80 de café con efectivo</i>.\n\n" +
		"<b>Comandos</b>\n" +
		"/stats · gastos del mes por categoría\n" +
		"/stats_year · resumen del año\n" +
		"/history · últimos gastos\n" +
		"/borrar &lt;número&gt; · elimina un gasto del historial\n" +
		"/categories · categorías disponibles\n" +
		"/export csv|pdf · descarga tus gastos\n" +
		"/clear · borra todos tus gastos\n" +
		"/cancel · cancela el gasto pendiente\n" +
		"/conectar_email &lt;correo&gt; &lt;contraseña de aplicación&gt; · conecta tu correo\n" +
		"/buscar_facturas · busca facturas en tu correo\n" +
		"/desconectar_email · desconecta tu correo\n" +
		"/menu · muestra el teclado de opciones"

	forbiddenMessage       = "⛔ No tienes permiso para usar este bot."
	unknownCommandMessage  = "🤷 No conozco ese comando. Usa /ayuda para ver las opciones."
	genericErrorMessage    = "😕 Algo salió mal. Inténtalo de nuevo en un momento."
	parserDownMessage      = "😕 No pude entender tu gasto en este momento. Inténtalo de nuevo en unos minutos."
	voiceErrorMessage      = "😕 No pude procesar tu nota de voz. ¿Puedes intentarlo otra vez o escribirlo?"
	emptyVoiceMessage      = "🤔 No escuché nada en el audio. ¿Puedes repetirlo?"
	emptyTextMessage       = "🤔 Cuéntame tu gasto, por ejemplo: <i>Gasté 150 en uber</i>"
	transcriptMessage      = "🎤 Escuché: <i>%s</i>"
	menuMessage            = "📋 Elige una opción:"
	nothingToCancelMessage = "No hay nada pendiente."
	cancelledMessage       = "❌ Listo, descarté %d %s."

	confirmTitle       = "📝 <b>Confirma tu gasto</b>"
	committedTitle     = "✅ <b>Gasto registrado</b>"
	rejectedTitle      = "❌ <b>Gasto cancelado</b>"
	interruptedTitle   = "❌ <b>Gasto descartado</b> (enviaste otro mensaje)"
	pickCategoryTitle  = "✏️ <b>Elige la categoría</b>"
	stalePendingAnswer = "Este gasto ya no está pendiente."
	savedAnswer        = "Guardado ✅"
	cancelledAnswer    = "Cancelado"
	saveFailedMessage  = "😕 No pude guardar el gasto. Vuelve a presionar ✅ Confirmar para reintentar."
	queuedMessage      = "📬 Quedan %d %s por revisar."

	categoriesTitle = "🏷️ <b>Categorías</b>\n\n"

	deleteUsageMessage  = "Uso: /borrar &lt;número&gt;. Consulta los números con /history."
	deleteMissMessage   = "No encontré el gasto número %d. Consulta /history."
	deletedMessage      = "🗑️ Eliminé: %s"
	clearConfirmMessage = "⚠️ ¿Seguro que quieres borrar <b>todos</b> tus gastos? Esta acción no se puede deshacer."
	clearedMessage      = "🗑️ Borré %d %s."
	clearKeptMessage    = "👍 No borré nada."

	exportUsageMessage = "Uso: /export csv o /export pdf"
	exportEmptyMessage = "📭 No tienes gastos para exportar."
	exportCaption      = "📎 %d %s"

	emailUsageMessage        = "Uso: /conectar_email &lt;correo&gt; &lt;contraseña de aplicación&gt;\n\nUsa una contraseña de aplicación de Google, no tu contraseña normal."
	emailAuthFailedMessage   = "❌ No pude iniciar sesión en tu correo. Revisa la dirección y la contraseña de aplicación."
	emailConnectedMessage    = "✅ Correo conectado: %s\nBorré tu mensaje con la contraseña. Usa /buscar_facturas para revisar tus facturas."
	emailDisconnectedMessage = "📪 Desconecté tu correo y borré la contraseña."
	emailNotConnectedMessage = "📪 No tienes un correo conectado. Usa /conectar_email primero."
	emailScanningMessage     = "🔎 Buscando facturas en tu correo…"
	emailBusyMessage         = "⏳ Ya estoy revisando tu correo, espera un momento."
	emailNothingMessage      = "📭 No encontré facturas nuevas."
	emailFoundMessage        = "📧 Encontré %d %s en tu correo."
)
